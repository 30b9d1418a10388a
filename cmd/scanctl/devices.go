package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"barcodescan/internal/bootstrap"
)

type deviceJSON struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position string `json:"position"`
	Default  bool   `json:"default"`
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available cameras",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		services, err := bootstrap.Build(logSink{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer services.Close()

		devices, err := services.Controller.Devices(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing cameras: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			out := make([]deviceJSON, 0, len(devices))
			for _, device := range devices {
				out = append(out, deviceJSON{
					ID:       device.ID,
					Name:     device.Name,
					Position: string(device.Position),
					Default:  device.Default,
				})
			}
			if err := printJSON(out); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}

		if len(devices) == 0 {
			fmt.Println(mutedStyle.Render("No cameras found."))
			return
		}

		fmt.Printf("%s\n", headerStyle.Render(fmt.Sprintf("Cameras (%d):", len(devices))))
		for _, device := range devices {
			marker := ""
			if device.Default {
				marker = successStyle.Render(" (default)")
			}
			fmt.Printf("  %s  %s  %s%s\n",
				labelStyle.Render(device.ID),
				valueStyle.Render(device.Name),
				mutedStyle.Render(string(device.Position)),
				marker,
			)
		}
	},
}
