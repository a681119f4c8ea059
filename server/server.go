// Package server contains the JSON payloads shared by the HTTP layer.
//
// Scalar values travel wrapped in a one-field object so that every client
// reads them the same way, e.g. {"bool": true} or {"int": 100}.
package server

import (
	"encoding/json"
	"fmt"
	"go/types"
	"log"
	"net/http"
)

// BoolT holds a bool under the key "bool"
type BoolT struct {
	Bool bool `json:"bool"`
}

// IntT holds an int under the key "int"
type IntT struct {
	Int int `json:"int"`
}

// IntSliceT holds a list of ints under the key "ints"
type IntSliceT struct {
	Ints []int `json:"ints"`
}

// StrT holds a string under the key "str"
type StrT struct {
	Str string `json:"str"`
}

// FloatT holds a float under the key "f64"
type FloatT struct {
	F64 float64 `json:"f64"`
}

// HumanPayload is a tagged union of the scalar payloads.  T selects which
// field is sent.
type HumanPayload struct {
	T types.BasicKind

	Bool   bool
	Int    int
	String string
	Float  float64
}

// payload returns the wire struct for the active field
func (hp HumanPayload) payload() (interface{}, error) {
	switch hp.T {
	case types.Bool:
		return BoolT{Bool: hp.Bool}, nil
	case types.Int:
		return IntT{Int: hp.Int}, nil
	case types.String:
		return StrT{Str: hp.String}, nil
	case types.Float64:
		return FloatT{F64: hp.Float}, nil
	default:
		return nil, fmt.Errorf("server: payload kind %d not supported", hp.T)
	}
}

// EncodeAndRespond encodes the payload to JSON and writes it to w.
// Errors are logged and reported with status 500.
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	p, err := hp.payload()
	if err != nil {
		log.Println(err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	Respond(w, p)
}

// Respond writes v as JSON with status 200
func Respond(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		fstr := fmt.Sprintf("error encoding data to json %q", err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
	}
}
