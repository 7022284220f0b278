package reader

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/cuentas-dev/cuentas/internal/dates"
	"github.com/cuentas-dev/cuentas/internal/model"
	"github.com/cuentas-dev/cuentas/internal/money"
)

// ErrNoAddenda is returned when a CFDI document carries no Addenda node,
// which is where HSBC embeds the statement movements.
var ErrNoAddenda = errors.New("no cfdi:Addenda element in document")

// CFDIParser reads HSBC credit-card statements shipped as CFDI 4.0 invoices.
// The fiscal envelope is ignored; the movements live in the Addenda.
type CFDIParser struct{}

func (p *CFDIParser) Format() string { return "xml" }

// xmlNode is a schema-free XML tree. HSBC has shipped several addenda
// layouts over the years, so the walker matches on local element names
// instead of a fixed structure.
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []xmlNode  `xml:",any"`
}

func (n *xmlNode) attr(local string) string {
	for _, a := range n.Attrs {
		if strings.EqualFold(a.Name.Local, local) {
			return a.Value
		}
	}
	return ""
}

func (p *CFDIParser) Parse(data []byte) ([]model.RawTransaction, error) {
	var root xmlNode
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&root); err != nil {
		return nil, fmt.Errorf("parsing cfdi document: %w", err)
	}

	addenda := findLocal(&root, "Addenda")
	if addenda == nil {
		return nil, ErrNoAddenda
	}

	accountHint := ""
	if datos := findLocal(addenda, "DatosGenerales"); datos != nil {
		accountHint = strings.TrimSpace(datos.attr("numerodecuenta"))
	}

	var rows []model.RawTransaction
	walk(addenda, func(n *xmlNode) {
		switch n.XMLName.Local {
		case "MovimientosDelCliente", "MovimientoDelClienteFiscal":
			date, ok := dates.FromISODateTime(n.attr("fecha"))
			if !ok {
				return
			}
			desc := collapseWS(n.attr("descripcion"))
			amount, okAmt := money.Parse(n.attr("importe"))
			if desc == "" || !okAmt {
				return
			}
			rows = append(rows, model.RawTransaction{
				Date:        date,
				Description: desc,
				Amount:      amount,
				TaxID:       strings.TrimSpace(n.attr("RFCenajenante")),
				AccountHint: accountHint,
				Source:      "xml",
			})
		}
	})

	sortRows(rows)
	return rows, nil
}

// findLocal returns the first descendant (or the node itself) whose local
// name matches, depth-first.
func findLocal(n *xmlNode, local string) *xmlNode {
	if n.XMLName.Local == local {
		return n
	}
	for i := range n.Children {
		if found := findLocal(&n.Children[i], local); found != nil {
			return found
		}
	}
	return nil
}

func walk(n *xmlNode, fn func(*xmlNode)) {
	fn(n)
	for i := range n.Children {
		walk(&n.Children[i], fn)
	}
}

func collapseWS(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
