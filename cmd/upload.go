package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/adopt-ai/zapi-go/internal/observability"
	"github.com/adopt-ai/zapi-go/pkg/zapi"
)

func newUploadCmd() *cobra.Command {
	uploadCmd := &cobra.Command{
		Use:   "upload <file...>",
		Short: "Upload previously captured HAR files for API discovery",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := observability.GetLogger()

			client := zapi.New(cfg, logger)
			if err := client.Authenticate(ctx, cfg.Credentials.ClientID, cfg.Credentials.Secret); err != nil {
				return err
			}
			if cfg.LLM.APIKey != "" {
				if err := client.SetLLMKey(cfg.LLM.Provider, cfg.LLM.APIKey, cfg.LLM.Model); err != nil {
					return fmt.Errorf("configure LLM credential: %w", err)
				}
			}

			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(3)
			for _, path := range args {
				path := path
				g.Go(func() error {
					resp, err := client.UploadArtifact(gctx, path)
					if err != nil {
						return fmt.Errorf("upload %s: %w", path, err)
					}
					logger.Info("Capture uploaded", zap.String("file", path), zap.String("id", resp.ID))
					fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (id: %s)\n", path, resp.ID)
					return nil
				})
			}
			return g.Wait()
		},
	}
	return uploadCmd
}

func init() {
	rootCmd.AddCommand(newUploadCmd())
}
