package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/utafrali/EcommerceGo/services/cart/internal/app"
)

func buildInspectCmd(flags *globalFlags) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the stored cart",
		Long: `Load the stored cart through the same validating path the service uses and
print its lines, item count, subtotal and the format it was stored in.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			log := flags.logger()
			backend, release, err := app.OpenBackend(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer release()
			return runInspect(cmd.Context(), cmd.OutOrStdout(), backend, cfg.StorageKey, cfg.QuantityCeiling, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func buildMigrateCmd(flags *globalFlags) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Rewrite a legacy cart in the current format",
		Long: `Rewrite a cart stored as a bare array of lines as the current versioned
envelope. Carts already in the current format are left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			log := flags.logger()
			backend, release, err := app.OpenBackend(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer release()
			return runMigrate(cmd.Context(), cmd.OutOrStdout(), backend, cfg.StorageKey, cfg.QuantityCeiling, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the rewritten payload without storing it")
	return cmd
}

func buildQuoteCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote [product-id] [quantity]",
		Short: "Price a quantity of a catalog product",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || productID <= 0 {
				return errInvalidArg("product-id", args[0])
			}
			quantity := 1
			if len(args) == 2 {
				quantity, err = strconv.Atoi(args[1])
				if err != nil || quantity < 1 {
					return errInvalidArg("quantity", args[1])
				}
			}

			cfg, err := flags.load()
			if err != nil {
				return err
			}
			cat, pool, err := app.OpenCatalog(cmd.Context(), cfg, flags.logger())
			if err != nil {
				return err
			}
			if pool != nil {
				defer pool.Close()
			}
			return runQuote(cmd.Context(), cmd.OutOrStdout(), cat, productID, quantity)
		},
	}
	return cmd
}
