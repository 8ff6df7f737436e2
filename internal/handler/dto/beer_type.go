// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/kegstock/kegstock/internal/model"
)

// ErrNotInteger is returned by ParseInteger for any JSON value that is not
// a whole number: strings, fractions, exponents, booleans, objects.
var ErrNotInteger = errors.New("not a JSON integer")

// ErrIntegerRange is returned by ParseInteger for integers that do not fit
// the 32-bit column they are stored in.
var ErrIntegerRange = errors.New("integer out of range")

// CreateBeerTypeRequest represents the request body for creating a beer type.
// KegCount is kept raw so "5", 5.5 and true can be rejected instead of coerced.
type CreateBeerTypeRequest struct {
	Name     string          `json:"name"`
	KegCount json.RawMessage `json:"kegCount,omitempty"`
}

// KegAmountRequest is the body of add-kegs and remove-kegs.
type KegAmountRequest struct {
	Amount json.RawMessage `json:"amount"`
}

// SetKegCountRequest is the body of a stock take.
type SetKegCountRequest struct {
	KegCount json.RawMessage `json:"kegCount"`
}

// BeerTypeResponse represents a beer type in API responses.
type BeerTypeResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	KegCount int    `json:"kegCount"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// ToBeerTypeResponse converts a BeerType model to its DTO.
func ToBeerTypeResponse(bt *model.BeerType) *BeerTypeResponse {
	return &BeerTypeResponse{
		ID:       bt.ID,
		Name:     bt.Name,
		KegCount: bt.KegCount,
	}
}

// ToBeerTypeListResponse converts a slice of models. The result is never nil
// so an empty inventory encodes as [].
func ToBeerTypeListResponse(list []*model.BeerType) []BeerTypeResponse {
	out := make([]BeerTypeResponse, len(list))
	for i, bt := range list {
		out[i] = *ToBeerTypeResponse(bt)
	}
	return out
}

// ParseInteger decodes raw as a JSON integer. present is false when the
// field was omitted or null. Values outside the int32 range fail with
// ErrIntegerRange.
func ParseInteger(raw json.RawMessage) (value int, present bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, true, ErrNotInteger
	}
	num, ok := v.(json.Number)
	if !ok {
		return 0, true, ErrNotInteger
	}

	n, err := strconv.ParseInt(num.String(), 10, 32)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, true, ErrIntegerRange
		}
		return 0, true, ErrNotInteger
	}
	return int(n), true, nil
}
