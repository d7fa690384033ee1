package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/slipway-io/slipway/config"
	"github.com/slipway-io/slipway/credentials"
	"github.com/slipway-io/slipway/internal/scm"
	"github.com/slipway-io/slipway/internal/tui"
	"github.com/slipway-io/slipway/kube"
	"github.com/slipway-io/slipway/logging"
	"github.com/slipway-io/slipway/pipeline"
	"github.com/slipway-io/slipway/runner"
	"github.com/slipway-io/slipway/stages"
	"github.com/slipway-io/slipway/store"
)

var (
	runTag         string
	runKubeContext string
	runSecretsFile string
	runBuilderName string
	runConcurrency int
	runJSONOut     bool
)

var runCmd = &cobra.Command{
	Use:   "run [pipeline.yaml ...]",
	Short: "Execute one or more pipeline definitions",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runTag, "tag", "", "immutable image tag (default: short commit of the build context)")
	runCmd.Flags().StringVar(&runKubeContext, "set-context", "", "kube context override for remote targets")
	runCmd.Flags().StringVar(&runSecretsFile, "secrets-file", ".env", "path to a .env style secrets file")
	runCmd.Flags().StringVar(&runBuilderName, "builder", "", "container tool: docker, podman, or buildah (default: detect)")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 4, "maximum pipelines run at once")
	runCmd.Flags().BoolVar(&runJSONOut, "json", false, "print results as JSON instead of a summary")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	paths := args
	if len(paths) == 0 {
		paths = []string{"pipeline.yaml"}
	}
	defs := make([]*config.Definition, 0, len(paths))
	for _, path := range paths {
		def, err := config.LoadDefinition(path)
		if err != nil {
			return err
		}
		if runTag != "" {
			def.Image.Tag = runTag
		}
		if runKubeContext != "" {
			def.Target.Context = runKubeContext
		}
		defs = append(defs, def)
	}

	resolver, err := credentials.FromEnv()
	if err != nil {
		return err
	}
	if err := credentials.LoadSecretsFile(resolver, runSecretsFile); err != nil {
		return fmt.Errorf("loading secrets file %s: %w", runSecretsFile, err)
	}
	if missing := missingScopes(resolver, defs); len(missing) > 0 && isInteractive() {
		if err := promptSecrets(resolver, missing); err != nil {
			return err
		}
	}
	log.SetScrubber(credentials.NewRedactor(resolver.SecretValues()...).Redact)

	cmdRunner := &runner.DefaultRunner{}
	if anyRemoteDeploy(defs) {
		if err := kube.CheckInstalled(); err != nil {
			return err
		}
		if version, err := kube.NewKubectl(cmdRunner, "").Version(context.Background()); err == nil {
			log.Debug("kubectl client", map[string]any{"version": version})
		}
	}

	controller := newEngine(cfg, runBuilderName, cmdRunner, resolver, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nCancelling...")
		cancel()
	}()

	st := store.New(cfg.DataDirOrDefault())

	var (
		mu     sync.Mutex
		failed int
	)
	var g errgroup.Group
	g.SetLimit(runConcurrency)
	for _, def := range defs {
		def := def
		g.Go(func() error {
			res, runErr := controller.Run(ctx, def)

			mu.Lock()
			defer mu.Unlock()
			if _, err := st.Save(res); err != nil {
				fmt.Fprintf(os.Stderr, "WARNING: persisting run %s: %v\n", res.ID, err)
			}
			printResult(res)
			if runErr != nil {
				failed++
			}
			return runErr
		})
	}

	if err := g.Wait(); err != nil {
		if len(defs) > 1 {
			fmt.Fprintf(os.Stderr, "%d of %d runs failed\n", failed, len(defs))
		}
		return err
	}
	return nil
}

// newEngine wires the stage dispatcher and controller the run and serve
// commands share.
func newEngine(cfg config.Config, builderOverride string, cmdRunner runner.CommandRunner, resolver *credentials.Resolver, log logging.Logger) *pipeline.Controller {
	builderName := builderOverride
	if builderName == "" {
		builderName = cfg.Builder
	}
	set := stages.NewSet(builderName, cmdRunner, log)
	set.RegistryURL = cfg.RegistryURL

	controller := pipeline.NewController(set, resolver, log)
	controller.ResolveTag = func(ctx context.Context, contextDir string) (string, error) {
		if clean, err := scm.IsWorkTreeClean(ctx, cmdRunner, contextDir); err == nil && !clean {
			fmt.Fprintln(os.Stderr, "WARNING: building from a dirty work tree")
		}
		return scm.ShortCommit(ctx, cmdRunner, contextDir)
	}
	return controller
}

// missingScopes returns the credential scopes the definitions need that the
// resolver cannot currently satisfy.
func missingScopes(r *credentials.Resolver, defs []*config.Definition) []credentials.Scope {
	seen := make(map[credentials.Scope]bool)
	var missing []credentials.Scope
	for _, def := range defs {
		for _, scope := range pipeline.RequiredScopes(def) {
			if !r.Has(scope) && !seen[scope] {
				seen[scope] = true
				missing = append(missing, scope)
			}
		}
	}
	return missing
}

func anyRemoteDeploy(defs []*config.Definition) bool {
	for _, def := range defs {
		if def.Target.Kind != "local" && def.HasKind(config.KindDeploy) {
			return true
		}
	}
	return false
}

func printResult(res *pipeline.RunResult) {
	if runJSONOut {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "WARNING: encoding run %s: %v\n", res.ID, err)
			return
		}
		fmt.Println(string(data))
		return
	}
	fmt.Println(tui.RenderRun(res))
}
