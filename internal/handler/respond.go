package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// maxBodyBytes caps request bodies; carts and payments are small.
const maxBodyBytes = 1 << 20

// writeJSON renders one JSON response through a jx encoder.
func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError renders the {code, message} error body used by every endpoint.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	})
}

// decodeBody reads the request body and hands it to a jx decoder callback.
func decodeBody(r *http.Request, f func(d *jx.Decoder) error) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	return f(jx.DecodeBytes(body))
}

// decodeDecimal reads a JSON number (or numeric string) as a decimal.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}

// encodeDecimal writes a decimal as a string with two fraction digits.
// Money travels as strings so clients never round it through binary floats.
func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Str(v.StringFixed(2))
}
