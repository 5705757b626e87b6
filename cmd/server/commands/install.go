package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/avatarctic/funwheel-offline/internal/core/domain/asset"
)

var (
	installGeneration string
	installTimeout    time.Duration
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install and activate a cache generation, then exit",
	Long: `Fetch every manifest asset from the origin into the configured cache
backend and activate the generation, deleting all other generations.

Useful to pre-warm a persistent backend (redis, badger, postgres) before
the proxy starts. Exits non-zero when any manifest asset cannot be fetched.

Examples:
  # Install the generation from CACHE_GENERATION
  funwheel-offline install

  # Install an explicit generation
  funwheel-offline install --generation funwheel-v2`,
	RunE: runInstall,
}

func init() {
	installCmd.Flags().StringVar(&installGeneration, "generation", "", "generation tag (default: CACHE_GENERATION)")
	installCmd.Flags().DurationVar(&installTimeout, "timeout", 2*time.Minute, "maximum time for install and activate")
}

func runInstall(cmd *cobra.Command, args []string) error {
	rt, err := bootstrap()
	if err != nil {
		return err
	}
	defer rt.Close()

	req := rt.registration
	if installGeneration != "" {
		req.Generation = asset.Generation(installGeneration)
	}

	ctx, cancel := context.WithTimeout(context.Background(), installTimeout)
	defer cancel()

	st, err := rt.manager.Register(ctx, req)
	if err != nil {
		return err
	}
	cmd.Printf("generation %s active (worker %s, %d assets)\n", st.Generation, st.ID, len(st.Manifest))
	return nil
}
