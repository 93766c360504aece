package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/applysmartuk/statement_server/internal/model"
	"github.com/applysmartuk/statement_server/internal/model/dto"
	"github.com/applysmartuk/statement_server/internal/pkg/pubsub"
)

func newRootCmd(factory appFactory) *cobra.Command {
	var configPath string
	var a *app

	rootCmd := &cobra.Command{
		Use:           "statement-admin",
		Short:         "Operator tooling for the statement server",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			a, err = factory(configPath)
			return err
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a != nil {
				a.close()
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")

	current := func() *app { return a }
	rootCmd.AddCommand(
		newCreateAdminCmd(current),
		newSeedPackageCmd(current),
		newGrantCreditsCmd(current),
		newWatchCmd(current),
	)

	return rootCmd
}

func newCreateAdminCmd(current func() *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin user for the admin API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			admin, err := current().admin.CreateAdmin(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", admin.Email, admin.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newSeedPackageCmd(current func() *app) *cobra.Command {
	var req dto.CreatePackageRequest
	var credits int

	cmd := &cobra.Command{
		Use:   "seed-package",
		Short: "Create a package, creating the Stripe price when none is given",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.PackageType != model.PackageTypeOneTime && req.PackageType != model.PackageTypeSubscription {
				return fmt.Errorf("--type must be %s or %s", model.PackageTypeOneTime, model.PackageTypeSubscription)
			}
			if req.PriceGBP <= 0 {
				return errors.New("--price must be positive")
			}
			if cmd.Flags().Changed("credits") {
				req.Credits = &credits
			}

			info, err := current().packages.Create(cmd.Context(), &req)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created package %s (%s) price=%s\n", info.Name, info.ID, info.StripePriceID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "package name")
	cmd.Flags().StringVar(&req.Description, "description", "", "package description")
	cmd.Flags().StringVar(&req.PackageType, "type", model.PackageTypeOneTime, "one_time or subscription")
	cmd.Flags().IntVar(&credits, "credits", 0, "credits granted (one_time only)")
	cmd.Flags().Float64Var(&req.PriceGBP, "price", 0, "price in GBP")
	cmd.Flags().IntVar(&req.DisplayOrder, "order", 0, "display order")
	cmd.Flags().StringVar(&req.StripePriceID, "price-id", "", "existing Stripe price id")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("price")

	return cmd
}

func newGrantCreditsCmd(current func() *app) *cobra.Command {
	var email string
	var credits int

	cmd := &cobra.Command{
		Use:   "grant-credits",
		Short: "Add credits to an account, creating it if needed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := current().ledger.Credit(cmd.Context(), email, credits); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "granted %d credits to %s\n", credits, email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().IntVar(&credits, "credits", 0, "number of credits")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("credits")

	return cmd
}

func newWatchCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream background task outcomes published by the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := current()
			if a.rdb == nil {
				return errors.New("redis is not configured or unreachable")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			err := pubsub.NewSubscriber(a.rdb).Subscribe(ctx, nil, func(msg *pubsub.OutcomeMessage) {
				_, _ = fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\n",
					msg.FinishedAt.Format("2006-01-02 15:04:05"), msg.TaskID, msg.Name, msg.Status, msg.Message)
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
}
