// Package mixer exposes the controls of a Xonar card over HTTP
package mixer

import (
	"errors"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/TPiechocki/OS-xonar-driver/generichttp"
	"github.com/TPiechocki/OS-xonar-driver/server"
	"github.com/TPiechocki/OS-xonar-driver/xonar"
)

// Switch is a two-state control
type Switch interface {
	Name() string
	Get() (bool, error)
	Put(bool) (bool, error)
}

// Card is the control surface of one sound card
type Card interface {
	VolumeRange() (channels, lo, hi int)
	Volume() ([]int, error)
	SetVolume([]int) (bool, error)
	Mute() (bool, error)
	SetMute(bool) (bool, error)
	HasExternalPower() bool
	State() xonar.State
	Dump(io.Writer) error
}

// Range is the shape of the volume control
type Range struct {
	Channels int `json:"channels"`
	Min      int `json:"min"`
	Max      int `json:"max"`
}

type statusError struct {
	error
	code int
}

func (e statusError) StatusCode() int { return e.code }
func (e statusError) Unwrap() error   { return e.error }

// classify attaches the HTTP status matching a driver error
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, xonar.ErrInvalidArgument):
		return statusError{err, http.StatusBadRequest}
	case errors.Is(err, xonar.ErrBadState), errors.Is(err, xonar.ErrBusy):
		return statusError{err, http.StatusConflict}
	default:
		return err
	}
}

// HTTPMixer wraps a Card in an HTTP route table.  Requests that write to the
// card share one rate limiter, since every DAC register write costs the
// 2-wire bus about a millisecond.
type HTTPMixer struct {
	Card Card

	lim *rate.Limiter

	// RouteTable maps URLs to functions
	RouteTable generichttp.RouteTable
}

// NewHTTPMixer returns a new HTTP wrapper around card.  Writes are limited to
// perSecond with a burst of the same size; perSecond <= 0 disables the limit.
// front may be nil for a card without a front panel switch.
func NewHTTPMixer(card Card, front Switch, perSecond float64) *HTTPMixer {
	lim := rate.NewLimiter(rate.Inf, 0)
	if perSecond > 0 {
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	h := &HTTPMixer{Card: card, lim: lim}
	get := func(path string) generichttp.MethodPath {
		return generichttp.MethodPath{Method: http.MethodGet, Path: path}
	}
	post := func(path string) generichttp.MethodPath {
		return generichttp.MethodPath{Method: http.MethodPost, Path: path}
	}
	rt := generichttp.RouteTable{}
	rt[get("/volume")] = generichttp.GetInts(h.volume)
	rt[post("/volume")] = h.limit(generichttp.SetInts(h.setVolume))
	rt[get("/volume/range")] = h.volumeRange
	rt[get("/mute")] = generichttp.GetBool(h.mute)
	rt[post("/mute")] = h.limit(generichttp.SetBool(h.setMute))
	rt[get("/external-power")] = generichttp.GetBool(h.power)
	rt[get("/state")] = generichttp.GetString(h.state)
	rt[get("/dump")] = h.dump
	if front != nil {
		rt[get("/front-panel")] = generichttp.GetBool(func() (bool, error) {
			on, err := front.Get()
			return on, classify(err)
		})
		rt[post("/front-panel")] = h.limit(generichttp.SetBool(func(b bool) error {
			_, err := front.Put(b)
			return classify(err)
		}))
	}
	h.RouteTable = rt
	return h
}

// RT satisfies the generichttp.HTTPer interface
func (h *HTTPMixer) RT() generichttp.RouteTable {
	return h.RouteTable
}

func (h *HTTPMixer) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.lim.Allow() {
			http.Error(w, "control rate exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

func (h *HTTPMixer) volume() ([]int, error) {
	levels, err := h.Card.Volume()
	return levels, classify(err)
}

func (h *HTTPMixer) mute() (bool, error) {
	on, err := h.Card.Mute()
	return on, classify(err)
}

func (h *HTTPMixer) setVolume(levels []int) error {
	_, err := h.Card.SetVolume(levels)
	return classify(err)
}

func (h *HTTPMixer) setMute(mute bool) error {
	_, err := h.Card.SetMute(mute)
	return classify(err)
}

func (h *HTTPMixer) power() (bool, error) {
	return h.Card.HasExternalPower(), nil
}

func (h *HTTPMixer) state() (string, error) {
	return h.Card.State().String(), nil
}

func (h *HTTPMixer) volumeRange(w http.ResponseWriter, r *http.Request) {
	n, lo, hi := h.Card.VolumeRange()
	server.Respond(w, Range{Channels: n, Min: lo, Max: hi})
}

func (h *HTTPMixer) dump(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := h.Card.Dump(w); err != nil {
		generichttp.Error(w, classify(err))
	}
}
