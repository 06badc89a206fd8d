package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spektr-org/askcel/store"
	"github.com/spektr-org/askcel/web"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web UI",
		Long: `Starts the browser UI. Sessions are kept in ASKCEL_DATA_DIR when set,
otherwise in memory. An API key from the environment becomes the default
for every session; users can enter their own in the sidebar.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.ListenAddr = addr
			}

			st, err := store.Open(a.cfg.DataDir, a.cfg.SessionTTL, a.logger.Named("store"))
			if err != nil {
				return err
			}
			defer func() {
				if err := st.Close(); err != nil {
					a.logger.Warn("close session store", zap.Error(err))
				}
			}()

			var opts []web.Option
			llm, err := a.llm(cmd.Context())
			if err != nil {
				return err
			}
			if llm != nil {
				opts = append(opts, web.WithDefaultTranslator(llm))
			}
			return web.New(a.cfg, st, a.logger, opts...).ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides ASKCEL_LISTEN_ADDR)")
	return cmd
}
