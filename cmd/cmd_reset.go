package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var resetForce bool

var resetStateCmd = &cobra.Command{
	Use:   "reset-state",
	Short: "Mark the program engine idle and drive every output closed",
	Long: `Recover a controller that was stopped mid-program.

Run this while the server is stopped. The persisted execution state is set
to idle and every configured valve and the safety relay are switched off.
Programs and settings are kept.`,
	RunE: runResetState,
}

var factoryResetCmd = &cobra.Command{
	Use:   "factory-reset",
	Short: "Delete all programs and restore factory settings",
	Long: `Reset the controller to a fresh state.

This command will:
- Switch off every valve and the safety relay
- Delete all programs
- Restore the factory zone layout and limits

WARNING: programs cannot be recovered afterwards.

Examples:
  # Interactive reset (will prompt for confirmation)
  irrigation-controller factory-reset

  # Force reset without confirmation
  irrigation-controller factory-reset --force
`,
	RunE: runFactoryReset,
}

func init() {
	factoryResetCmd.Flags().BoolVarP(&resetForce, "force", "f", false, "Skip confirmation prompt")
	rootCmd.AddCommand(resetStateCmd, factoryResetCmd)
}

func runResetState(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	if err := a.services.SettingsStore.Load(ctx); err != nil {
		a.log.Warnw("settings unavailable, using factory defaults", "err", err)
	}
	a.services.Engine.RecoverState(ctx)
	if err := a.services.Controller.Initialize(ctx); err != nil {
		return fmt.Errorf("close outputs: %w", err)
	}
	fmt.Println("Execution state reset; all outputs closed.")
	return nil
}

func runFactoryReset(cmd *cobra.Command, args []string) error {
	if !resetForce {
		fmt.Print("This deletes every program and restores factory settings. Type 'yes' to continue: ")
		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if strings.TrimSpace(strings.ToLower(answer)) != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	if err := a.services.SettingsStore.Load(ctx); err != nil {
		a.log.Warnw("settings unavailable, using factory defaults", "err", err)
	}
	if err := a.services.ResetAllData(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := a.services.Controller.Initialize(ctx); err != nil {
		return fmt.Errorf("close outputs: %w", err)
	}
	fmt.Println("Controller reset to factory state.")
	return nil
}
