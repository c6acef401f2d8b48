// Package receipt renders a committed transaction as preview text and as an
// ESC/POS byte stream for thermal printers. It reads only the transaction
// snapshot, never live catalog data.
package receipt

import (
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/aamamaludin23/electronkasir/internal/domain"
	"github.com/aamamaludin23/electronkasir/internal/pricing"
)

const lineWidth = 32

var (
	escInit    = []byte{0x1b, 0x40}
	escCut     = []byte{0x1d, 0x56, 0x41, 0x10}
	drawerKick = []byte{0x1b, 0x70, 0x00, 0x19, 0xfa}
)

type Receipt struct {
	TransactionID string `json:"transaction_id"`
	PreviewText   string `json:"preview_text"`
	EscposBase64  string `json:"escpos_base64"`
	FileName      string `json:"file_name"`
}

// Options carries data printed alongside the snapshot.
type Options struct {
	Settings     domain.Settings
	CustomerName string
}

var printer = message.NewPrinter(language.Indonesian)

// FormatMoney renders an amount with Indonesian digit grouping, e.g. Rp222.000.
func FormatMoney(amount int64) string {
	if amount < 0 {
		return printer.Sprintf("-Rp%d", -amount)
	}
	return printer.Sprintf("Rp%d", amount)
}

func Build(tx domain.Transaction, opts Options) Receipt {
	lines := Lines(tx, opts)

	escpos := append([]byte(nil), escInit...)
	for _, line := range lines {
		escpos = append(escpos, []byte(line)...)
		escpos = append(escpos, '\n')
	}
	escpos = append(escpos, escCut...)

	return Receipt{
		TransactionID: tx.ID,
		PreviewText:   strings.Join(lines, "\n"),
		EscposBase64:  base64.StdEncoding.EncodeToString(escpos),
		FileName:      fmt.Sprintf("receipt-%s.bin", tx.ID),
	}
}

func Lines(tx domain.Transaction, opts Options) []string {
	storeName := opts.Settings.StoreName
	if storeName == "" {
		storeName = "ElectronKasir"
	}
	rule := strings.Repeat("=", lineWidth)
	thin := strings.Repeat("-", lineWidth)

	lines := []string{center(storeName)}
	if opts.Settings.Address != "" {
		lines = append(lines, center(opts.Settings.Address))
	}
	if opts.Settings.Phone != "" {
		lines = append(lines, center(opts.Settings.Phone))
	}
	lines = append(lines,
		rule,
		"No     : "+tx.ID,
		"Tanggal: "+tx.Timestamp.Format("2006-01-02 15:04:05"),
	)
	if tx.CashierName != "" {
		lines = append(lines, "Kasir  : "+tx.CashierName)
	}
	if opts.CustomerName != "" && tx.CustomerID != domain.WalkInCustomerID {
		lines = append(lines, "Pelanggan: "+opts.CustomerName)
	}
	lines = append(lines, thin)

	subtotal := int64(0)
	for _, item := range tx.Items {
		unit := pricing.ResolveUnitPrice(item.PriceTier, item.Quantity)
		lineTotal := unit * int64(item.Quantity)
		subtotal += lineTotal
		lines = append(lines,
			item.Name,
			twoColumn(fmt.Sprintf("  %d %s x %s", item.Quantity, item.PriceTier.UnitName, FormatMoney(unit)), FormatMoney(lineTotal)),
		)
	}

	tax := tx.Total - (subtotal - tx.Discount + tx.OtherFees)
	lines = append(lines,
		thin,
		twoColumn("Subtotal", FormatMoney(subtotal)),
	)
	if tx.Discount != 0 {
		lines = append(lines, twoColumn("Diskon", FormatMoney(-tx.Discount)))
	}
	if tx.OtherFees != 0 {
		lines = append(lines, twoColumn("Biaya lain", FormatMoney(tx.OtherFees)))
	}
	if tax != 0 {
		lines = append(lines, twoColumn("Pajak", FormatMoney(tax)))
	}
	lines = append(lines,
		twoColumn("Total", FormatMoney(tx.Total)),
		twoColumn("Bayar ("+paymentLabel(tx)+")", FormatMoney(tx.AmountPaid)),
	)
	if tx.PaymentMethod == domain.PaymentCash {
		lines = append(lines, twoColumn("Kembali", FormatMoney(tx.Change)))
	}
	if tx.PaymentMethod == domain.PaymentCredit && tx.Total > tx.AmountPaid {
		lines = append(lines, twoColumn("Sisa", FormatMoney(tx.Total-tx.AmountPaid)))
	}
	lines = append(lines, rule)
	if opts.Settings.ReceiptNotes != "" {
		lines = append(lines, center(opts.Settings.ReceiptNotes))
	}
	lines = append(lines, center("Terima kasih"), "")
	return lines
}

// DrawerKick returns the ESC/POS pulse that opens a cash drawer on pin 2.
func DrawerKick() string {
	return base64.StdEncoding.EncodeToString(drawerKick)
}

func paymentLabel(tx domain.Transaction) string {
	switch tx.PaymentMethod {
	case domain.PaymentCash:
		return "Tunai"
	case domain.PaymentDebit:
		if tx.Bank != "" {
			return "Debit " + tx.Bank
		}
		return "Debit"
	case domain.PaymentEMoney:
		return "E-Money"
	case domain.PaymentCredit:
		return "Kredit"
	default:
		return tx.PaymentMethod
	}
}

func twoColumn(left string, right string) string {
	gap := lineWidth - len(left) - len(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func center(text string) string {
	if len(text) >= lineWidth {
		return text
	}
	return strings.Repeat(" ", (lineWidth-len(text))/2) + text
}
