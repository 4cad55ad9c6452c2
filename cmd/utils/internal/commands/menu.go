package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/appetiteclub/apt"

	"github.com/appetiteclub/kiosk/internal/app"
	"github.com/appetiteclub/kiosk/internal/backend"
	"github.com/appetiteclub/kiosk/internal/kiosk"
)

// Menu prints the menu the kiosk would show, static fallback included.
func Menu(ctx context.Context, config *apt.Config, logger apt.Logger, out io.Writer) error {
	client := backend.NewHTTPClient(
		config.GetStringOrDef("api.url", backend.DefaultBaseURL),
		app.Duration(config, "api.timeout", backend.DefaultTimeout),
		"",
	)
	catalog := kiosk.NewMenuCatalog(client, 0, logger)
	return printMenu(catalog.Load(ctx), out)
}

func printMenu(items []kiosk.MenuItem, out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tTAGS")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n", item.ID, item.Name, item.Price, strings.Join(item.Tags, ","))
	}
	return w.Flush()
}
