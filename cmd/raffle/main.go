package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"tikka/internal/config"
	"tikka/internal/ledger"
	"tikka/internal/logger"
	"tikka/internal/raffle"
	"tikka/internal/storage"
)

const programName = "raffle"

type app struct {
	configFile string
	envFile    string

	cfg      *config.Config
	store    storage.Storage
	contract *raffle.Contract
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command line and returns the process exit code. Failures
// are reported on stderr prefixed with their error kind.
func run(args []string, stdout, stderr io.Writer) int {
	a := &app{}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if closeErr := a.close(); err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", raffle.KindOf(err), err)
		return 1
	}
	return 0
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           programName,
		Short:         "Operate raffles: create, sell tickets, draw and settle",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "path to dotenv file")

	root.AddCommand(
		a.createCommand(),
		a.depositCommand(),
		a.buyCommand(),
		a.finalizeCommand(),
		a.provideRandomnessCommand(),
		a.cancelCommand(),
		a.claimCommand(),
		a.withdrawProceedsCommand(),
		a.refundCommand(),
		a.getCommand(),
		a.ticketsCommand(),
		a.listCommand(),

		a.initCommand(),
		a.platformCommand(),
		a.setOracleCommand(),
		a.setFeeCommand(),
		a.setTreasuryCommand(),
		a.withdrawFeesCommand(),
		a.pauseCommand(),
		a.unpauseCommand(),
		a.proposeAdminCommand(),
		a.acceptAdminCommand(),

		a.mintCommand(),
		a.balanceCommand(),
		a.auditCommand(),
		a.eventsCommand(),
	)
	return root
}

func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configFile, a.envFile)
	if err != nil {
		return err
	}
	logger.Initialize(cfg.Log)

	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return err
	}
	sequence, err := store.LatestSequence(cmd.Context())
	if err != nil {
		store.Close()
		return err
	}

	a.cfg = cfg
	a.store = store
	a.contract = raffle.New(store, ledger.NewSystemClock(sequence), cfg.ContractOptions()...)
	return nil
}

func (a *app) close() error {
	defer logger.Sync()
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

func output(cmd *cobra.Command, value any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func parseID(value string) (uint64, error) {
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: raffle id %q", raffle.ErrInvalidParameters, value)
	}
	return id, nil
}

func addressFlag(cmd *cobra.Command, name string) (ledger.Address, error) {
	value, err := cmd.Flags().GetString(name)
	if err != nil {
		return "", err
	}
	address, err := ledger.NormalizeAddress(value)
	if err != nil {
		return "", fmt.Errorf("%w: --%s: %w", raffle.ErrInvalidParameters, name, err)
	}
	return address, nil
}

func optionalAddressFlag(cmd *cobra.Command, name string) (*ledger.Address, error) {
	value, err := cmd.Flags().GetString(name)
	if err != nil {
		return nil, err
	}
	address, err := ledger.OptionalAddress(value)
	if err != nil {
		return nil, fmt.Errorf("%w: --%s: %w", raffle.ErrInvalidParameters, name, err)
	}
	return address, nil
}

func amountFlag(cmd *cobra.Command, name string) (ledger.Amount, error) {
	value, err := cmd.Flags().GetString(name)
	if err != nil {
		return ledger.ZeroAmount(), err
	}
	amount, err := ledger.ParseAmount(value)
	if err != nil {
		return ledger.ZeroAmount(), fmt.Errorf("%w: --%s: %w", raffle.ErrInvalidParameters, name, err)
	}
	return amount, nil
}

func requireFlags(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}
