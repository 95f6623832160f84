package backend_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harman-mundh/localcommunity/core"
)

func seedMeeting(s *TestService, authorID int64) int64 {
	return s.Fakes.meetings.seed(core.Record{
		"title":            "Neighbourhood assembly",
		"allText":          "We discuss the new playground",
		"summary":          "Playground",
		"imageURL":         "/api/v1/images/0b6f7f36-3f8e-4b8c-9c55-2f4f0e7c8a11",
		"start_time":       "2024-05-01T18:00:00Z",
		"end_time":         "2024-05-01T20:00:00Z",
		core.FieldAuthorID: authorID,
	})
}

func TestListMeetingSummaries(t *testing.T) {
	s := CreateTestService(t)
	seedMeeting(s, alice.ID)

	var out []map[string]interface{}
	_, err := s.anonymous().RawGet("/api/v2/meetings", &out)
	require.NoError(t, err)
	require.Len(t, out, 1)

	meeting := out[0]
	assert.Equal(t, "Neighbourhood assembly", meeting["title"])
	assert.Equal(t, "2024-05-01T18:00:00Z", meeting["start_time"])
	assert.NotContains(t, meeting, "summary")
	assert.NotContains(t, meeting, "imageURL")
	assert.Equal(t, map[string]interface{}{
		"self":  "/api/v2/meetings/1",
		"views": "/api/v2/meetings/1/views",
	}, meeting["links"])
}

func TestCreateMeeting(t *testing.T) {
	s := CreateTestService(t)

	status, err := s.as(alice).Do(http.MethodPost, "/api/v2/meetings", map[string]interface{}{
		"title":      "Cleanup day",
		"allText":    "Bring gloves",
		"start_time": "tomorrow",
		"end_time":   "2024-06-01T12:00:00Z",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)

	var out map[string]interface{}
	status, err = s.as(alice).RawPost("/api/v2/meetings", map[string]interface{}{
		"title":      "Cleanup day",
		"allText":    "Bring gloves",
		"start_time": "2024-06-01T09:00:00Z",
		"end_time":   "2024-06-01T12:00:00Z",
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "/api/v2/meetings/1", out["link"])
}

func TestReadMeetingAttachesWeather(t *testing.T) {
	s := CreateTestService(t, withWeather(fakeForecaster{}))
	seedMeeting(s, alice.ID)

	var out map[string]interface{}
	_, err := s.as(bob).RawGet("/api/v2/meetings/1", &out)
	require.NoError(t, err)
	weather, ok := out["weather"].(map[string]interface{})
	require.True(t, ok, "weather missing in %v", out)
	assert.Contains(t, weather, "DailyForecasts")
	assert.Equal(t, 1, s.Fakes.meetingsViews.incrementCalls())
}

func TestReadMeetingWeatherFailureIsReportedInline(t *testing.T) {
	s := CreateTestService(t, withWeather(fakeForecaster{err: errUpstream}))
	seedMeeting(s, alice.ID)

	var out map[string]interface{}
	status, err := s.as(bob).RawGet("/api/v2/meetings/1", &out)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]interface{}{"error": "weather unavailable"}, out["weather"])
}

func TestMeetingOwnership(t *testing.T) {
	s := CreateTestService(t)
	id := seedMeeting(s, alice.ID)

	status, err := s.as(bob).Do(http.MethodPut, "/api/v2/meetings/1", map[string]interface{}{"title": "Taken over"}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, status)

	_, err = s.as(alice).RawPut("/api/v2/meetings/1", map[string]interface{}{"end_time": "2024-05-01T21:00:00Z"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T21:00:00Z", s.Fakes.meetings.row(id)["end_time"])

	status, err = s.as(alice).Do(http.MethodPut, "/api/v2/meetings/1", map[string]interface{}{}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMeetingLocations(t *testing.T) {
	s := CreateTestService(t, withGeocoder(fakeGeocoder{}))
	id := seedMeeting(s, alice.ID)

	_, err := s.as(alice).RawPost("/api/v2/meetings/1/locations", map[string]interface{}{"latitude": 52.52, "longitude": 13.405}, nil)
	require.NoError(t, err)
	locationID, _ := s.Fakes.meetings.row(id).Int64("locationID")
	assert.NotZero(t, locationID)

	var out map[string]interface{}
	_, err = s.as(bob).RawGet("/api/v2/meetings/1", &out)
	require.NoError(t, err)
	assert.Contains(t, out, "location")
	assert.Contains(t, out, "geocodingResponse")
}

func TestAnnouncements(t *testing.T) {
	s := CreateTestService(t)
	body := map[string]interface{}{"title": "Street festival", "allText": "Saturday from noon"}

	status, err := s.as(alice).Do(http.MethodPost, "/api/v2/announcements", body, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, status)

	_, err = s.as(admin).RawPost("/api/v2/announcements", body, nil)
	require.NoError(t, err)

	var out map[string]interface{}
	_, err = s.as(alice).RawGet("/api/v2/announcements/1", &out)
	require.NoError(t, err)
	announcement, ok := out["announcement"].(map[string]interface{})
	require.True(t, ok, "announcement missing in %v", out)
	assert.Equal(t, "Street festival", announcement["title"])
	assert.Equal(t, map[string]interface{}{
		"goBack": "/api/v2/announcements",
		"self":   "/api/v2/announcements/1",
	}, out["links"])

	var views map[string]interface{}
	_, err = s.anonymous().RawGet("/api/v2/announcements/1/views", &views)
	require.NoError(t, err)
	assert.Equal(t, float64(1), views["views"])

	status, err = s.as(alice).Do(http.MethodDelete, "/api/v2/announcements/1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, status)

	_, err = s.as(admin).RawDelete("/api/v2/announcements/1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Fakes.announcements.count())
}
