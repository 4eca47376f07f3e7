package pdf

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
)

const department = "Department of Complaints"

var ErrEmptyLetter = errors.New("empty_letter")

type LetterProvider struct{}

func NewLetterProvider() Provider {
	return &LetterProvider{}
}

// Reference formats the case number printed on letters.
func Reference(complaintID int64) string {
	return fmt.Sprintf("DOC-%06d", complaintID)
}

func formatFee(cents int64, currency string) string {
	amount := decimal.New(cents, -2).StringFixed(2)
	return strings.ToUpper(currency) + " " + amount
}

func (p *LetterProvider) GenerateLetter(ctx context.Context, data LetterData) ([]byte, error) {
	if strings.TrimSpace(data.Response) == "" {
		return nil, ErrEmptyLetter
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, department, props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, "Ref. "+Reference(data.ComplaintID), props.Text{
			Size:  10,
			Align: align.Right,
			Top:   4,
		}),
	)
	m.AddRow(4, line.NewCol(12))

	m.AddRow(24,
		col.New(6).Add(
			text.New("To: "+data.CustomerEmail, props.Text{Size: 9}),
			text.New("Filed: "+data.FiledAt.UTC().Format("2 January 2006"), props.Text{Size: 9, Top: 5}),
			text.New("Resolved: "+data.ResolvedAt.UTC().Format("2 January 2006"), props.Text{Size: 9, Top: 10}),
		),
		col.New(6).Add(
			text.New(fmt.Sprintf("Complexity Score: %d / 10", data.ComplexityScore), props.Text{
				Size:  9,
				Style: fontstyle.Bold,
				Align: align.Right,
			}),
			text.New("Filing fee received: "+formatFee(data.FilingFee, data.Currency), props.Text{
				Size:  9,
				Align: align.Right,
				Top:   5,
			}),
		),
	)

	m.AddRow(10, text.NewCol(12, "Regarding your submission", props.Text{Size: 11, Style: fontstyle.Bold}))
	m.AddAutoRow(text.NewCol(12, data.Content, props.Text{Size: 9, Style: fontstyle.Italic}))

	m.AddRow(10, text.NewCol(12, "Official response", props.Text{Size: 11, Style: fontstyle.Bold, Top: 4}))
	for _, paragraph := range strings.Split(data.Response, "\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		m.AddAutoRow(text.NewCol(12, paragraph, props.Text{Size: 10, Bottom: 2}))
	}

	m.AddRow(20,
		text.NewCol(12, "Yours in perpetual review,\n"+department, props.Text{Size: 9, Top: 8}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("render letter: %w", err)
	}
	return doc.GetBytes(), nil
}
