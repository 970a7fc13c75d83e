package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"botPerformance/internal/domain"
	"botPerformance/internal/pnl"
	"botPerformance/internal/ports"
	"botPerformance/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// botClient is everything botctl needs from the bot backend.
type botClient interface {
	ports.BotDirectory
	ports.BotCommander
	ports.TradeSource
}

type cliApp struct {
	client     botClient
	out        io.Writer
	quoteAsset string
	connect    func(*cliApp) error
	now        func() time.Time
}

func newRootCmd(app *cliApp) *cobra.Command {
	if app.now == nil {
		app.now = time.Now
	}
	if app.quoteAsset == "" {
		app.quoteAsset = "USDT"
	}

	root := &cobra.Command{
		Use:           "botctl",
		Short:         "Inspect and operate martingale bots",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if app.client != nil || app.connect == nil {
				return nil
			}
			return app.connect(app)
		},
	}
	root.SetOut(app.out)

	root.AddCommand(
		app.botsCmd(),
		app.reportCmd(),
		app.createCmd(),
		app.updateCmd(),
		app.lifecycleCmd("start", "Start a bot", func(ctx context.Context, id int64) error { return app.client.StartBot(ctx, id) }),
		app.lifecycleCmd("stop", "Stop a bot", func(ctx context.Context, id int64) error { return app.client.StopBot(ctx, id) }),
		app.lifecycleCmd("delete", "Delete a bot", func(ctx context.Context, id int64) error { return app.client.DeleteBot(ctx, id) }),
		app.transferCmd(),
		app.balanceCmd(),
	)
	return root
}

func parseBotID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid bot id %q", arg)
	}
	return id, nil
}

func formatCreated(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func (app *cliApp) botsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bots",
		Short: "List bots known to the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bots, err := app.client.ListBots(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(app.out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tASSET\tSTATUS\tCREATED\t")
			for _, bot := range bots {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t\n", bot.ID, bot.Name, bot.Asset, bot.Status, formatCreated(bot.CreatedAt))
			}
			return w.Flush()
		},
	}
}

func (app *cliApp) reportCmd() *cobra.Command {
	var csvPath string
	cmd := &cobra.Command{
		Use:   "report <bot-id>",
		Short: "Compute a bot's daily PnL, ROI and ROE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBotID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			bot, err := app.client.GetBot(ctx, id)
			if err != nil {
				return err
			}
			if bot == nil {
				return fmt.Errorf("bot %d: %w", id, ports.ErrNotFound)
			}

			var since time.Time
			if bound := bot.AttributionLowerBound(); bound > 0 {
				since = time.UnixMilli(bound)
			}
			trades, err := app.client.ListClosedTrades(ctx, bot.Asset, since)
			if err != nil {
				return err
			}
			ledger, err := app.client.ListLedgerEntries(ctx, bot.Asset, since)
			if err != nil {
				return err
			}

			snap := pnl.BuildSnapshot(*bot, trades, ledger, app.now().UTC())
			if err := app.printReport(snap); err != nil {
				return err
			}
			if csvPath != "" {
				if err := utils.WriteDailyMetricsToFile(snap.Daily, csvPath); err != nil {
					return err
				}
				fmt.Fprintf(app.out, "\nDaily metrics written to %s\n", csvPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "also write the daily metrics to this CSV file")
	return cmd
}

func (app *cliApp) printReport(snap domain.Snapshot) error {
	fmt.Fprintf(app.out, "Bot %d (%s) %s\n", snap.Bot.ID, snap.Bot.Asset, snap.Bot.Status)
	fmt.Fprintf(app.out, "Trades: %d  Total PnL: %s  Average PnL: %s\n\n", snap.TradeCount, snap.Summary.TotalPnL, snap.Summary.AveragePnL)

	w := tabwriter.NewWriter(app.out, 0, 0, 3, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "DATE\tPNL\tROI %\tROE %\t")
	for _, day := range snap.Daily {
		fmt.Fprintf(w, "%s\t%.2f\t%.4f\t%.2f\t\n", day.Date, day.PnL, day.ROI, day.ROE)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	in := snap.Insights
	fmt.Fprintf(app.out, "\nWin rate: %.2f%% (%d/%d)\n", in.WinRate*100, in.WinningTrades, in.TotalTrades)
	if in.BestDay != "" {
		fmt.Fprintf(app.out, "Best day: %s (%.2f)  Worst day: %s (%.2f)\n",
			pnl.DisplayLabel(in.BestDay), in.BestDayPnL, pnl.DisplayLabel(in.WorstDay), in.WorstDayPnL)
	}
	fmt.Fprintf(app.out, "Max drawdown: %.2f  Daily PnL median: %.2f  stdev: %.2f\n", in.MaxDrawdown, in.DailyPnLMedian, in.DailyPnLStdDev)
	return nil
}

// botParamFlags registers the bot settings flags shared by create and update.
func botParamFlags(cmd *cobra.Command, params *domain.BotParams, baseAmount, multiplier, takeProfit *string) {
	cmd.Flags().StringVar(&params.Name, "name", "", "bot name")
	cmd.Flags().StringVar(&params.Asset, "asset", "", "traded symbol, e.g. BTCUSDT")
	cmd.Flags().IntVar(&params.Leverage, "leverage", 1, "position leverage")
	cmd.Flags().IntVar(&params.MaxSteps, "max-steps", 5, "maximum martingale steps")
	cmd.Flags().StringVar(baseAmount, "base-amount", "", "first order size in the quote asset")
	cmd.Flags().StringVar(multiplier, "multiplier", "2", "size multiplier per step")
	cmd.Flags().StringVar(takeProfit, "take-profit", "1", "take profit percent")
}

func resolveBotParams(params domain.BotParams, baseAmount, multiplier, takeProfit string) (domain.BotParams, error) {
	var err error
	if params.Asset == "" {
		return params, fmt.Errorf("--asset is required")
	}
	if params.BaseAmount, err = decimal.NewFromString(baseAmount); err != nil {
		return params, fmt.Errorf("invalid --base-amount %q", baseAmount)
	}
	if params.Multiplier, err = decimal.NewFromString(multiplier); err != nil {
		return params, fmt.Errorf("invalid --multiplier %q", multiplier)
	}
	if params.TakeProfitPercent, err = decimal.NewFromString(takeProfit); err != nil {
		return params, fmt.Errorf("invalid --take-profit %q", takeProfit)
	}
	return params, nil
}

func (app *cliApp) createCmd() *cobra.Command {
	var params domain.BotParams
	var baseAmount, multiplier, takeProfit string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := resolveBotParams(params, baseAmount, multiplier, takeProfit)
			if err != nil {
				return err
			}
			bot, err := app.client.CreateBot(cmd.Context(), resolved)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.out, "Created bot %d on %s\n", bot.ID, bot.Asset)
			return nil
		},
	}
	botParamFlags(cmd, &params, &baseAmount, &multiplier, &takeProfit)
	return cmd
}

func (app *cliApp) updateCmd() *cobra.Command {
	var params domain.BotParams
	var baseAmount, multiplier, takeProfit string
	cmd := &cobra.Command{
		Use:   "update <bot-id>",
		Short: "Change a bot's settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBotID(args[0])
			if err != nil {
				return err
			}
			resolved, err := resolveBotParams(params, baseAmount, multiplier, takeProfit)
			if err != nil {
				return err
			}
			bot, err := app.client.UpdateBot(cmd.Context(), id, resolved)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.out, "Updated bot %d\n", bot.ID)
			return nil
		},
	}
	botParamFlags(cmd, &params, &baseAmount, &multiplier, &takeProfit)
	return cmd
}

func (app *cliApp) lifecycleCmd(use, short string, run func(ctx context.Context, id int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <bot-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBotID(args[0])
			if err != nil {
				return err
			}
			if err := run(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(app.out, "Bot %d: %s ok\n", id, use)
			return nil
		},
	}
}

func (app *cliApp) transferCmd() *cobra.Command {
	var amount, from, to, coin string
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move funds between account wallets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := decimal.NewFromString(amount)
			if err != nil || !value.IsPositive() {
				return fmt.Errorf("--amount must be a positive number, got %q", amount)
			}
			if coin == "" {
				coin = app.quoteAsset
			}
			transfer := domain.Transfer{Coin: coin, Amount: value, FromAccount: from, ToAccount: to}
			if err := app.client.Transfer(cmd.Context(), transfer); err != nil {
				return err
			}
			fmt.Fprintf(app.out, "Transferred %s %s from %s to %s\n", value.String(), coin, from, to)
			return nil
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "amount to move")
	cmd.Flags().StringVar(&from, "from", "", "source wallet")
	cmd.Flags().StringVar(&to, "to", "", "destination wallet")
	cmd.Flags().StringVar(&coin, "coin", "", "coin to move (defaults to the quote asset)")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func (app *cliApp) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the wallet balance of the quote asset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			balance, err := app.client.GetWalletBalance(cmd.Context(), app.quoteAsset)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.out, "%s %s\n", balance.StringFixed(2), app.quoteAsset)
			return nil
		},
	}
}
