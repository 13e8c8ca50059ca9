package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"drinktea/internal/adapters/teaclient"
	"drinktea/internal/domain"
	"drinktea/internal/infra/config"
	logpkg "drinktea/internal/infra/log"
	"drinktea/internal/usecase/feed"
	"drinktea/internal/usecase/feedback"
	"drinktea/internal/usecase/ledger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	root, cleanup := newRootCmd()
	err := root.ExecuteContext(ctx)
	cleanup()
	if err != nil {
		os.Exit(1)
	}
}

// newRootCmd собирает дерево команд; cleanup дожидается фоновых отправок.
func newRootCmd() (*cobra.Command, func()) {
	var a *app
	root := &cobra.Command{
		Use:          "teacli",
		Short:        "Лента чая для анонимного посетителя",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			built, err := newApp(cmd.Context(), cfg, logpkg.NewConsoleLogger(cfg.AppEnv))
			if err != nil {
				return err
			}
			a = built
			return nil
		},
	}
	get := func() *app { return a }
	root.AddCommand(
		newIDCmd(get),
		newFeedCmd(get),
		newDecisionCmd(get, domain.DecisionLike),
		newDecisionCmd(get, domain.DecisionDislike),
		newOpenCmd(get),
		newHistoryCmd(get),
		newMessageCmd(get),
		newPruneCmd(get),
		newOutboxCmd(get),
	)
	cleanup := func() {
		if a != nil {
			a.Close()
		}
	}
	return root, cleanup
}

func newIDCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "id",
		Short: "Показать анонимный идентификатор устройства",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := get().identity.GetOrCreateID(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func newFeedCmd(get func() *app) *cobra.Command {
	var (
		category string
		view     string
		pages    int
	)
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Показать ленту без уже оценённых позиций",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := domain.ParseCategory(category)
			if err != nil {
				return err
			}
			v, err := feed.ParseView(view)
			if err != nil {
				return err
			}
			session := get().session()
			filter := feed.Filter{Category: cat, View: v}
			out := cmd.OutOrStdout()
			for i := 0; i < pages; i++ {
				page, err := session.Next(cmd.Context(), filter)
				if err != nil {
					return err
				}
				for _, tea := range page.Items {
					printTea(out, tea)
				}
				if !page.HasMore {
					break
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "категория: pu_er, white, yancha, black")
	cmd.Flags().StringVar(&view, "view", "all", "вид ленты: all, liked, disliked")
	cmd.Flags().IntVar(&pages, "pages", 1, "сколько страниц загрузить")
	return cmd
}

func newDecisionCmd(get func() *app, decision domain.Decision) *cobra.Command {
	return &cobra.Command{
		Use:   string(decision) + " <tea-id>",
		Short: "Оценить позицию: " + string(decision),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTeaID(args[0])
			if err != nil {
				return err
			}
			if err := get().feedback.Submit(cmd.Context(), id, decision); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", decision, id)
			return nil
		},
	}
}

func newOpenCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "open <tea-id>",
		Short: "Показать подробности позиции",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTeaID(args[0])
			if err != nil {
				return err
			}
			a := get()
			tea, err := a.client.GetTea(cmd.Context(), id)
			if err != nil {
				return err
			}
			if err := a.feedback.DetailOpen(cmd.Context(), id); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printTea(out, tea)
			fmt.Fprintf(out, "  %s, %s\n", tea.Origin, tea.Spec)
			if tea.Intro != nil {
				fmt.Fprintf(out, "  %s\n", *tea.Intro)
			}
			return nil
		},
	}
}

func newHistoryCmd(get func() *app) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Показать оценки за окно агрегации",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			if days <= 0 {
				days = a.cfg.Feedback.WindowDays
			}
			agg, err := a.ledger.Aggregate(cmd.Context(), days)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "like: %s\n", joinIDs(ledger.IDsWith(agg, domain.DecisionLike)))
			fmt.Fprintf(out, "dislike: %s\n", joinIDs(ledger.IDsWith(agg, domain.DecisionDislike)))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "окно в днях (по умолчанию FEEDBACK_WINDOW_DAYS)")
	return cmd
}

func newMessageCmd(get func() *app) *cobra.Command {
	var (
		contact string
		teaID   int64
	)
	cmd := &cobra.Command{
		Use:   "message <text>",
		Short: "Отправить текстовый отзыв",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := feedback.MessageInput{Message: strings.Join(args, " "), Contact: contact}
			if teaID > 0 {
				in.TeaID = &teaID
			}
			if err := get().feedback.Message(cmd.Context(), in); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&contact, "contact", "", "контакт для ответа")
	cmd.Flags().Int64Var(&teaID, "tea", 0, "id позиции, к которой относится отзыв")
	return cmd
}

func newPruneCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Удалить дневные журналы старше окна агрегации",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			removed, err := a.ledger.Prune(cmd.Context(), a.cfg.Feedback.WindowDays)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d\n", removed)
			return nil
		},
	}
}

func newOutboxCmd(get func() *app) *cobra.Command {
	outbox := &cobra.Command{
		Use:   "outbox",
		Short: "Очередь неотправленных оценок и событий",
	}
	outbox.AddCommand(&cobra.Command{
		Use:   "drain",
		Short: "Повторить отправку из очереди",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			if !a.cfg.Feedback.Outbox {
				return fmt.Errorf("outbox disabled, set FEEDBACK_OUTBOX=true")
			}
			res, err := a.feedback.Drain(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %d, requeued %d, dropped %d\n", res.Replayed, res.Requeued, res.Dropped)
			return nil
		},
	})
	return outbox
}

func parseTeaID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid tea id %q", raw)
	}
	return id, nil
}

func printTea(w io.Writer, tea domain.Tea) {
	price := "-"
	switch {
	case tea.PriceMin != nil && tea.PriceMax != nil:
		price = fmt.Sprintf("%d-%d", *tea.PriceMin, *tea.PriceMax)
	case tea.PriceMin != nil:
		price = strconv.Itoa(*tea.PriceMin)
	}
	fmt.Fprintf(w, "%4d  %-8s %d  %s  ¥%s\n", tea.ID, tea.Category, tea.Year, tea.Name, price)
}

func joinIDs(ids []int64) string {
	if len(ids) == 0 {
		return "-"
	}
	return teaclient.JoinIDs(ids)
}
