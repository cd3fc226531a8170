package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adopt-ai/zapi-go/internal/observability"
	"github.com/adopt-ai/zapi-go/pkg/zapi"
)

func newCaptureCmd() *cobra.Command {
	captureCmd := &cobra.Command{
		Use:   "capture <url>",
		Short: "Record authenticated browser traffic for a target URL into a HAR file",
		Long: `Authenticates with ZAPI_CLIENT_ID / ZAPI_SECRET, opens a recording
browser session, navigates to the target URL, and writes the captured
traffic as a HAR file. In interactive mode the browser stays open so you
can click through the application; press ENTER to finish the capture.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := observability.GetLogger()
			target := args[0]

			interactive, _ := cmd.Flags().GetBool("interactive")
			upload, _ := cmd.Flags().GetBool("upload")
			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				name := fmt.Sprintf("capture-%s.har", time.Now().Format("20060102-150405"))
				output = filepath.Join(cfg.Session.OutputDir, name)
			}
			if interactive {
				// A visible browser is the point of interactive mode.
				cfg.Browser.Headless = false
			}

			client := zapi.New(cfg, logger)
			if err := client.Authenticate(ctx, cfg.Credentials.ClientID, cfg.Credentials.Secret); err != nil {
				return err
			}

			if cfg.LLM.APIKey != "" {
				if err := client.SetLLMKey(cfg.LLM.Provider, cfg.LLM.APIKey, cfg.LLM.Model); err != nil {
					return fmt.Errorf("configure LLM credential: %w", err)
				}
			}

			session, err := client.LaunchSession(ctx, target)
			if err != nil {
				return err
			}
			defer session.Close(context.Background())

			if interactive {
				fmt.Fprintln(cmd.OutOrStdout(), "Recording. Browse the application, then press ENTER to finish.")
				if err := waitForEnter(ctx, os.Stdin); err != nil {
					logger.Warn("Capture interrupted", zap.Error(err))
					return err
				}
			}

			if err := session.Finalize(ctx, output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Capture written to %s\n", output)

			if upload {
				resp, err := client.UploadArtifact(ctx, output)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Uploaded capture (id: %s)\n", resp.ID)
			}
			return nil
		},
	}

	captureCmd.Flags().StringP("output", "o", "", "Destination HAR path (default <output_dir>/capture-<timestamp>.har)")
	captureCmd.Flags().BoolP("interactive", "i", false, "Keep the browser open and finish on ENTER")
	captureCmd.Flags().Bool("upload", false, "Upload the capture after finalizing")
	return captureCmd
}

// waitForEnter blocks until in delivers a newline or the context ends. The
// stdin read cannot be cancelled, so it runs detached and the process relies
// on exit to reap it.
func waitForEnter(ctx context.Context, in io.Reader) error {
	pressed := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(in).ReadString('\n')
		pressed <- err
	}()

	select {
	case err := <-pressed:
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func init() {
	rootCmd.AddCommand(newCaptureCmd())
}
