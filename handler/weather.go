package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/trekka/core"
	"github.com/hupe1980/trekka/model"
	"github.com/hupe1980/trekka/weather"
)

// Weather extracts a city with the model, fetches a forecast and returns it
// verbatim when short, or rephrased by the model when long.
type Weather struct {
	base
	llm model.Model
	svc core.WeatherService
}

// NewWeather creates the weather handler. A nil service means no API key is
// configured.
func NewWeather(llm model.Model, svc core.WeatherService, optFns ...func(o *Options)) *Weather {
	return &Weather{base: newBase(core.IntentWeather, optFns), llm: llm, svc: svc}
}

// Handle implements Handler.
func (h *Weather) Handle(ctx context.Context, req *Request) core.Message {
	if h.svc == nil {
		return sorry(weather.ErrMissingAPIKey)
	}
	text := req.LatestUserText()

	prompt := fmt.Sprintf("Extract the city name from this text (Nepal only): '%s'. Respond only with city name.", text)
	city, err := h.complete(ctx, h.llm, "model", []core.Message{core.UserMessage(prompt)})
	city = cleanCity(city)
	if err != nil || city == "" {
		return core.AssistantMessage(NoCityText)
	}

	var forecast string
	err = h.call(ctx, "weather", func(ctx context.Context) error {
		var err error
		forecast, err = h.svc.Forecast(ctx, city, h.opts.ForecastDays)
		return err
	})
	if err != nil {
		return sorry(err)
	}

	if len(strings.Split(forecast, "\n")) <= h.opts.RephraseAbove {
		return core.AssistantMessage(forecast)
	}

	rephrase := "Rephrase this weather forecast naturally and clearly in plain text, suitable for chat. Do NOT add any quotes:\n" + forecast
	reply, err := h.complete(ctx, h.llm, "model", []core.Message{core.UserMessage(rephrase)})
	if err != nil {
		return core.AssistantMessage(forecast)
	}
	return core.AssistantMessage(reply)
}

func sorry(err error) core.Message {
	return core.AssistantMessage("Sorry, " + weather.Describe(err))
}

// cleanCity keeps the first line of a model answer and drops quotes and
// trailing punctuation.
func cleanCity(s string) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	return strings.Trim(strings.TrimSpace(s), `"'.`)
}

var _ Handler = (*Weather)(nil)
