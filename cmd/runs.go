package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slipway-io/slipway/internal/tui"
	"github.com/slipway-io/slipway/store"
)

var (
	showStage string
	showJSON  bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List persisted pipeline runs",
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run in detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func init() {
	runsShowCmd.Flags().StringVar(&showStage, "stage", "", "print the named stage's captured log instead of the summary")
	runsShowCmd.Flags().BoolVar(&showJSON, "json", false, "print the stored result as JSON")
	runsCmd.AddCommand(runsShowCmd)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	runs, err := store.New(cfg.DataDirOrDefault()).List()
	if err != nil {
		return err
	}
	fmt.Println(tui.RenderRunList(runs))
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	st := store.New(cfg.DataDirOrDefault())
	id := args[0]

	if showStage != "" {
		log, err := st.StageLog(id, showStage)
		if err != nil {
			return err
		}
		fmt.Print(log)
		return nil
	}

	res, err := st.Get(id)
	if err != nil {
		return err
	}
	if showJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	fmt.Println(tui.RenderRun(res))
	return nil
}
