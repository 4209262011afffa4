package pages

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"

	"foodgram/internal/shopping"
)

// ShoppingListData is everything a shopping list document shows.
type ShoppingListData struct {
	Owner       string
	Username    string
	GeneratedAt time.Time
	Items       []shopping.Item
}

// ShoppingListFormat is a downloadable representation of a shopping list.
type ShoppingListFormat string

const (
	FormatText ShoppingListFormat = "txt"
	FormatCSV  ShoppingListFormat = "csv"
	FormatHTML ShoppingListFormat = "html"
)

// ParseShoppingListFormat defaults to plain text.
func ParseShoppingListFormat(value string) (ShoppingListFormat, bool) {
	switch ShoppingListFormat(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatText:
		return FormatText, true
	case FormatCSV:
		return FormatCSV, true
	case FormatHTML:
		return FormatHTML, true
	default:
		return "", false
	}
}

// ContentType returns the MIME type served for f.
func (f ShoppingListFormat) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// ShoppingListFilename builds the attachment name, e.g. chef_shopping_list.txt.
func ShoppingListFilename(username string, format ShoppingListFormat) string {
	return fmt.Sprintf("%s_shopping_list.%s", username, format)
}

// FormatListDate renders the generation date of a list.
func FormatListDate(v time.Time) string {
	if v.IsZero() {
		return ""
	}
	return v.Format("02 Jan 2006")
}

// FormatListItem renders one line, e.g. "flour (g): 300".
func FormatListItem(item shopping.Item) string {
	return fmt.Sprintf("%s (%s): %d", item.Name, item.Unit, item.Amount)
}

// RenderShoppingList writes data in the requested format.
func RenderShoppingList(ctx context.Context, w io.Writer, format ShoppingListFormat, data ShoppingListData) error {
	switch format {
	case FormatCSV:
		return RenderShoppingListCSV(w, data)
	case FormatHTML:
		return ShoppingListPage(data).Render(ctx, w)
	default:
		return RenderShoppingListText(w, data)
	}
}

// RenderShoppingListText writes the plain text document.
func RenderShoppingListText(w io.Writer, data ShoppingListData) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Shopping list for: %s\n", data.Owner)
	fmt.Fprintf(&b, "Date: %s\n\n", FormatListDate(data.GeneratedAt))
	for i, item := range data.Items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, FormatListItem(item))
	}
	b.WriteString("\nFoodgram\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderShoppingListCSV writes a name,unit,amount table.
func RenderShoppingListCSV(w io.Writer, data ShoppingListData) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"name", "unit", "amount"}); err != nil {
		return err
	}
	for _, item := range data.Items {
		if err := writer.Write([]string{item.Name, item.Unit, strconv.Itoa(item.Amount)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ShoppingListPage renders a printable HTML document.
func ShoppingListPage(data ShoppingListData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"utf-8\">")
		fmt.Fprintf(&b, "<title>Shopping list for %s</title></head><body>", templ.EscapeString(data.Owner))
		fmt.Fprintf(&b, "<h1>Shopping list for %s</h1>", templ.EscapeString(data.Owner))
		fmt.Fprintf(&b, "<p class=\"date\">%s</p><ol>", templ.EscapeString(FormatListDate(data.GeneratedAt)))
		for _, item := range data.Items {
			fmt.Fprintf(&b, "<li>%s</li>", templ.EscapeString(FormatListItem(item)))
		}
		b.WriteString("</ol><footer>Foodgram</footer></body></html>")
		_, err := io.WriteString(w, b.String())
		return err
	})
}
