package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"spendtalk-backend/internal/expense"
)

func newExpensesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expenses",
		Short: "Work with the expense store directly",
	}
	cmd.AddCommand(
		newExpensesListCmd(),
		newExpensesSearchCmd(),
		newExpensesAddCmd(),
		newExpensesSummaryCmd(),
	)
	return cmd
}

func newExpensesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all expenses",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			list, err := a.expenses.List(cmd.Context())
			if err != nil {
				return err
			}
			return printExpenses(cmd.OutOrStdout(), list)
		}),
	}
}

func newExpensesSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <title>",
		Short: "Find expenses by title",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			list, err := a.expenses.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printExpenses(cmd.OutOrStdout(), list)
		}),
	}
}

func newExpensesAddCmd() *cobra.Command {
	var date, note string
	cmd := &cobra.Command{
		Use:   "add <title> <amount> <category>",
		Short: "Record an expense",
		Args:  cobra.ExactArgs(3),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}
			e, err := a.expenses.Add(cmd.Context(), expense.NewExpense{
				Title:    args[0],
				Amount:   amount,
				Category: args[2],
				Date:     date,
				Note:     note,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "added #%s %s %s (%s, %s)\n", e.ID, e.Title, e.Amount.StringFixed(2), e.Category, e.Date)
			return nil
		}),
	}
	cmd.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&note, "note", "", "free-text note")
	return cmd
}

func newExpensesSummaryCmd() *cobra.Command {
	var f expense.Filter
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Total spending by category",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			s, err := expense.SummarizeStore(cmd.Context(), a.expenses, f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, c := range s.ByCategory {
				_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\n", c.Category, c.Count, c.Total.StringFixed(2))
			}
			_, _ = fmt.Fprintf(tw, "Total\t%d\t%s\n", s.Count, s.Total.StringFixed(2))
			return tw.Flush()
		}),
	}
	cmd.Flags().StringVar(&f.Category, "category", "", "only this category")
	cmd.Flags().StringVar(&f.From, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.To, "to", "", "last day, YYYY-MM-DD")
	return cmd
}

func printExpenses(w io.Writer, list []expense.Expense) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "no expenses")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range list {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.Date, e.Title, e.Category, e.Amount.StringFixed(2))
	}
	return tw.Flush()
}
