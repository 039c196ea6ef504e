package source

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/railzwaylabs/orderetl/internal/normalize"
	orderdomain "github.com/railzwaylabs/orderetl/internal/order/domain"
	"github.com/shopspring/decimal"
)

// OrderElement is the name of each line element under the feed's root container.
const OrderElement = "order"

// OrderRecord is one <order> element exactly as it appeared in the feed.
type OrderRecord struct {
	OrderID       string `xml:"order_id" json:"order_id"`
	MobileNumber  string `xml:"mobile_number" json:"mobile_number"`
	OrderDateTime string `xml:"order_date_time" json:"order_date_time"`
	SkuID         string `xml:"sku_id" json:"sku_id"`
	SkuCount      string `xml:"sku_count" json:"sku_count"`
	TotalAmount   string `xml:"total_amount" json:"total_amount"`
}

// OrderLine is a decoded feed element. The feed carries one element per line item, so an order_id repeats
// across lines and each line restates the full order total.
type OrderLine struct {
	Line          int
	OrderID       string
	MobileNumber  *string
	OrderDateTime *time.Time
	SkuID         string
	SkuCount      int
	TotalAmount   decimal.Decimal
	// AmountInvalid is set when total_amount was present but unparseable and has been read as zero.
	AmountInvalid bool
	Raw           OrderRecord
}

// ErrMalformedElement marks an <order> element that is not well-formed XML.
var ErrMalformedElement = errors.New("malformed_order_element")

var (
	orderStart = regexp.MustCompile(`<` + OrderElement + `(?:[\s/][^>]*)?>`)
	orderEnd   = regexp.MustCompile(`</` + OrderElement + `\s*>`)
)

// MalformedElement is the raw text of an element that could not be decoded.
type MalformedElement struct {
	Line int    `json:"line"`
	XML  string `json:"xml"`
}

// ReadOrders reads the order feed. Every <order> element is one line and is decoded on its own, so a
// document with a single element reads the same way as one with many, and an element that is not
// well-formed becomes a failure without ending the read. A line without an order_id or with a bad
// sku_count becomes a failure, a bad timestamp is read as nil.
func ReadOrders(r io.Reader) (Batch[OrderLine], error) {
	var batch Batch[OrderLine]

	data, err := io.ReadAll(r)
	if err != nil {
		return batch, fmt.Errorf("read order feed: %w", err)
	}

	for _, seg := range orderSegments(data) {
		line := 1 + bytes.Count(data[:seg.start], []byte("\n"))
		raw := data[seg.start:seg.end]

		var rec OrderRecord
		if err := xml.NewDecoder(bytes.NewReader(raw)).Decode(&rec); err != nil {
			batch.Failures = append(batch.Failures, Failure{
				Line: line,
				Raw:  MalformedElement{Line: line, XML: string(raw)},
				Err:  fmt.Errorf("%w: %w", ErrMalformedElement, err),
			})
			continue
		}

		decoded, err := decodeLine(line, rec)
		if err != nil {
			batch.Failures = append(batch.Failures, Failure{Line: line, Raw: rec, Err: err})
			continue
		}
		batch.Records = append(batch.Records, decoded)
	}
	return batch, nil
}

type segment struct {
	start, end int
}

// orderSegments cuts the feed into <order> elements. An element missing its end tag runs up to the
// next <order> start tag or the end of the feed.
func orderSegments(data []byte) []segment {
	var segs []segment
	pos := 0
	for pos < len(data) {
		loc := orderStart.FindIndex(data[pos:])
		if loc == nil {
			break
		}
		start, bodyStart := pos+loc[0], pos+loc[1]
		if data[bodyStart-2] == '/' {
			segs = append(segs, segment{start: start, end: bodyStart})
			pos = bodyStart
			continue
		}

		end := len(data)
		if next := orderStart.FindIndex(data[bodyStart:]); next != nil {
			end = bodyStart + next[0]
		}
		if closing := orderEnd.FindIndex(data[bodyStart:end]); closing != nil {
			end = bodyStart + closing[1]
		}
		segs = append(segs, segment{start: start, end: end})
		pos = end
	}
	return segs
}

func decodeLine(line int, rec OrderRecord) (OrderLine, error) {
	orderID := normalize.Text(rec.OrderID)
	if orderID == "" {
		return OrderLine{}, orderdomain.ErrInvalidOrderID
	}

	count, err := normalize.Count(rec.SkuCount)
	if err != nil {
		return OrderLine{}, fmt.Errorf("%w: %q", orderdomain.ErrInvalidSkuCount, strings.TrimSpace(rec.SkuCount))
	}

	amount, ok := normalize.Amount(rec.TotalAmount)
	return OrderLine{
		Line:          line,
		OrderID:       orderID,
		MobileNumber:  normalize.Mobile(rec.MobileNumber),
		OrderDateTime: normalize.Timestamp(rec.OrderDateTime),
		SkuID:         normalize.Text(rec.SkuID),
		SkuCount:      count,
		TotalAmount:   amount,
		AmountInvalid: !ok,
		Raw:           rec,
	}, nil
}
