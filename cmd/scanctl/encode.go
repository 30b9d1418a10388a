package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"barcodescan/internal/bootstrap"
)

var encodeSizeFlag int

var encodeCmd = &cobra.Command{
	Use:   "encode TEXT",
	Short: "Render text as a QR code PNG",
	Long: `Render text as a QR code PNG in SCANNER_ENCODE_DIR and print the file path.

Examples:
  scanctl encode "https://example.com"
  scanctl encode --size 512 "WIFI:S:home;T:WPA;P:secret;;"`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		services, err := bootstrap.Build(logSink{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer services.Close()

		result, err := services.Controller.Encode(context.Background(), args[0], encodeSizeFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			if err := printJSON(result); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
		fmt.Println(result.FilePath)
	},
}

func init() {
	encodeCmd.Flags().IntVar(&encodeSizeFlag, "size", 0, "Image width and height in pixels (default SCANNER_ENCODE_DEFAULT_SIZE)")
}
