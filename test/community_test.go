//go:build integration

package test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/suite"

	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/events"
)

type CommunityTestSuite struct {
	IntegrationTestSuite
}

func TestCommunityTestSuite(t *testing.T) {
	suite.Run(t, &CommunityTestSuite{})
}

// TestIssueLifecycle registers a member who reports an issue, which is viewed,
// liked and finally deleted by the admin
func (s *CommunityTestSuite) TestIssueLifecycle() {
	var registered map[string]interface{}
	status, err := s.client.RawPost("/api/v1/users", map[string]interface{}{
		"username": "carol",
		"email":    "carol@example.com",
		"password": "carol-secret",
	}, &registered)
	s.Require().NoError(err)
	s.Equal(http.StatusCreated, status)

	var login struct {
		ID    int64  `json:"ID"`
		Token string `json:"token"`
	}
	_, err = s.client.WithBasicAuth("carol", "carol-secret").RawPost("/api/v1/users/login", nil, &login)
	s.Require().NoError(err)
	s.Require().NotEmpty(login.Token)
	carol := s.client.WithToken(login.Token)

	var created map[string]interface{}
	_, err = carol.RawPost("/api/v1/issues", map[string]interface{}{
		"title":   "Broken bench",
		"allText": "The bench in the park lost a plank",
	}, &created)
	s.Require().NoError(err)
	link, _ := created["link"].(string)
	s.Require().NotEmpty(link)

	var issues []map[string]interface{}
	_, err = s.client.RawGet("/api/v1/issues?limit=1&direction=DESC", &issues)
	s.Require().NoError(err)
	s.Require().Len(issues, 1)
	s.Equal("Broken bench", issues[0]["title"])
	s.Equal(float64(login.ID), issues[0][core.FieldAuthorID])

	var issue map[string]interface{}
	_, err = carol.RawGet(link, &issue)
	s.Require().NoError(err)
	s.Equal("Broken bench", issue["title"])

	var views map[string]interface{}
	_, err = s.client.RawGet(link+"/views", &views)
	s.Require().NoError(err)
	s.Equal(float64(1), views["views"])

	_, err = carol.RawPost(link+"/likes", nil, nil)
	s.Require().NoError(err)
	var likes map[string]interface{}
	_, err = s.client.RawGet(link+"/likes", &likes)
	s.Require().NoError(err)
	s.Equal(float64(1), likes["likes"])

	status, err = carol.Do(http.MethodDelete, link, nil, nil)
	s.Require().NoError(err)
	s.Equal(http.StatusForbidden, status)

	admin := s.client.WithBasicAuth(adminUsername, adminPassword)
	_, err = admin.RawDelete(link, nil)
	s.Require().NoError(err)

	status, err = carol.Do(http.MethodGet, link, nil, nil)
	s.Require().NoError(err)
	s.Equal(http.StatusNotFound, status)
}

// TestEventsArePublished checks that a created issue reaches the events topic
func (s *CommunityTestSuite) TestEventsArePublished() {
	admin := s.client.WithBasicAuth(adminUsername, adminPassword)
	_, err := admin.RawPost("/api/v1/issues", map[string]interface{}{
		"title":   "Flooded underpass",
		"allText": "Water everywhere after the storm",
	}, nil)
	s.Require().NoError(err)

	reader := s.newReader()
	defer reader.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for {
		message, err := reader.ReadMessage(ctx)
		s.Require().NoError(err, "no issue event within timeout")
		var event events.Event
		s.Require().NoError(json.Unmarshal(message.Value, &event))
		if event.Resource != "issues" || event.Operation != core.OperationCreate {
			continue
		}
		var payload map[string]interface{}
		s.Require().NoError(json.Unmarshal(event.Payload, &payload))
		if payload["title"] == "Flooded underpass" {
			return
		}
	}
}
