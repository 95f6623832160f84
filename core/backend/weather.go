package backend

import (
	"net/http"
)

const weatherPath = "/api/v2/weather"

// handleWeather serves the cached forecast
func (b *Backend) handleWeather() {
	forecast := func(w http.ResponseWriter, r *http.Request) {
		data, err := b.weather.Forecast(r.Context())
		if err != nil {
			b.fail(w, r, upstream("4791", err))
			return
		}
		b.respond(w, http.StatusOK, data)
	}
	b.handle(weatherPath, forecast, http.MethodGet)
	b.handle(weatherPath+"/", forecast, http.MethodGet)
}
