package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"barcodescan/internal/bootstrap"
	"barcodescan/internal/domain"
	"barcodescan/internal/tui"
)

const (
	exitFailed    = 1
	exitCancelled = 2
)

var (
	scanFormatsFlag  []string
	scanFrontFlag    bool
	scanFallbackFlag bool
	scanNoFlipFlag   bool
	scanTimeoutFlag  time.Duration
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan one barcode from the camera",
	Long: `Open a camera and wait for the first barcode, a manual entry, or cancellation.

In a terminal an interactive view accepts manual entry (Enter), flips the camera
(Ctrl+F) and cancels (Esc). With --json or --no-interactive the result is printed
once the scan ends; interrupt or --timeout cancels it.

Examples:
  scanctl scan
  scanctl scan --formats QR_CODE,EAN_13 --json
  scanctl scan --front --fallback --timeout 30s --no-interactive`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		request, err := scanRequestFromFlags(scanFormatsFlag, scanFrontFlag, scanFallbackFlag, scanNoFlipFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if scanTimeoutFlag > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, scanTimeoutFlag)
			defer cancel()
		}

		interactive := !jsonOutput && !skipInteractive && isTerminal()

		var outcome domain.Outcome
		if interactive {
			outcome, err = runInteractiveScan(ctx, request)
		} else {
			outcome, err = runPlainScan(ctx, request)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if err := reportOutcome(outcome); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if code := exitCode(outcome); code != 0 {
			os.Exit(code)
		}
	},
}

func runInteractiveScan(ctx context.Context, request domain.ScanRequest) (domain.Outcome, error) {
	sink := tui.NewSink()
	services, err := bootstrap.Build(sink)
	if err != nil {
		return domain.Outcome{}, err
	}
	defer services.Close()

	return tui.Run(ctx, services.Controller, sink, request)
}

// runPlainScan lets ctx cancellation end the session and still waits for its outcome.
func runPlainScan(ctx context.Context, request domain.ScanRequest) (domain.Outcome, error) {
	services, err := bootstrap.Build(logSink{})
	if err != nil {
		return domain.Outcome{}, err
	}
	defer services.Close()

	sub, err := services.Controller.Scan(ctx, request)
	if err != nil {
		return domain.Outcome{}, err
	}
	if err := services.Controller.PreviewReady(); err != nil {
		return domain.Outcome{}, err
	}

	result, err := sub.Wait(context.Background())
	if err != nil {
		var scanErr *domain.ScanError
		if errors.As(err, &scanErr) {
			return domain.Outcome{Err: scanErr}, nil
		}
		return domain.Outcome{}, err
	}
	return domain.Outcome{Result: &result}, nil
}

func scanRequestFromFlags(formats []string, front, fallback, noFlip bool) (domain.ScanRequest, error) {
	request := domain.ScanRequest{
		PreferFrontCamera: front,
		ShowFlipButton:    !noFlip,
		FallbackToDefault: fallback,
	}

	codes := make([]domain.DecodeFormat, 0, len(formats))
	for _, code := range formats {
		codes = append(codes, domain.DecodeFormat(code))
	}
	normalized, err := domain.NormalizeFormats(codes)
	if err != nil {
		return domain.ScanRequest{}, err
	}
	request.Formats = normalized
	return request, nil
}

func reportOutcome(outcome domain.Outcome) error {
	if jsonOutput {
		if outcome.Err != nil {
			return printJSON(map[string]any{"error": outcome.Err})
		}
		return printJSON(outcome.Result)
	}

	switch {
	case outcome.Err != nil:
		fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("%s: %s", domain.ErrorMessage(outcome.Err.Code, outcome.Err.Message), outcome.Err.Message)))
	case outcome.Result == nil:
		return errors.New("scan ended without a result")
	case outcome.Result.Cancelled:
		message := "Scan cancelled"
		if outcome.Result.Flipped {
			message = "Scan cancelled after switching camera"
		}
		fmt.Fprintln(os.Stderr, mutedStyle.Render(message))
	default:
		fmt.Println(outcome.Result.Text)
		source := outcome.Result.Format
		if outcome.Result.Manual {
			source = "manual entry"
		}
		fmt.Fprintln(os.Stderr, mutedStyle.Render(source))
	}
	return nil
}

func exitCode(outcome domain.Outcome) int {
	switch {
	case outcome.Err != nil:
		return exitFailed
	case outcome.Result == nil || outcome.Result.Cancelled:
		return exitCancelled
	default:
		return 0
	}
}

func init() {
	scanCmd.Flags().StringSliceVar(&scanFormatsFlag, "formats", nil, "Barcode formats to accept, e.g. QR_CODE,EAN_13 (default any)")
	scanCmd.Flags().BoolVar(&scanFrontFlag, "front", false, "Prefer the front-facing camera")
	scanCmd.Flags().BoolVar(&scanFallbackFlag, "fallback", false, "Use the default camera when no front camera exists")
	scanCmd.Flags().BoolVar(&scanNoFlipFlag, "no-flip", false, "Disable camera flipping")
	scanCmd.Flags().DurationVar(&scanTimeoutFlag, "timeout", 0, "Cancel the scan after this long (0 waits indefinitely)")
}
