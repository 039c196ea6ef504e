package service

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	reportdomain "github.com/railzwaylabs/orderetl/internal/report/domain"
)

// Render writes the report as aligned plain-text tables.
func Render(w io.Writer, r *reportdomain.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "Repeat customers")
	fmt.Fprintln(tw, "CUSTOMER_ID\tNAME\tORDERS")
	for _, c := range r.RepeatCustomers {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", c.CustomerID, c.CustomerName, c.OrdersCount)
	}

	fmt.Fprintln(tw, "\nMonthly order trends")
	fmt.Fprintln(tw, "MONTH\tORDERS")
	for _, m := range r.MonthlyTrends {
		fmt.Fprintf(tw, "%s\t%d\n", m.Month, m.Orders)
	}

	fmt.Fprintln(tw, "\nRegional revenue")
	fmt.Fprintln(tw, "REGION\tREVENUE")
	for _, rr := range r.RegionalRevenue {
		fmt.Fprintf(tw, "%s\t%s\n", rr.Region, rr.Revenue.StringFixed(2))
	}

	fmt.Fprintf(tw, "\nTop spenders since %s\n", r.TopSpendersSince.Format(time.DateOnly))
	fmt.Fprintln(tw, "CUSTOMER_ID\tNAME\tTOTAL_SPENT")
	for _, sp := range r.TopSpenders {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", sp.CustomerID, sp.CustomerName, sp.TotalSpent.StringFixed(2))
	}

	return tw.Flush()
}
