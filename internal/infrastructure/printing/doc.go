// Package printing renders invoices to PDF.
//
// InvoiceTemplate turns an invoice into an HTML document and
// ChromedpRenderer prints that document through headless Chrome:
//
//	renderer, err := NewChromedpRenderer(&ChromedpConfig{NoSandbox: true})
//	if err != nil {
//	    return err
//	}
//	defer renderer.Close()
//
//	pdf, err := renderer.RenderPDF(ctx, invoice)
package printing
