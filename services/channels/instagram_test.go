package channels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fastCore(url string) *instagramCore {
	core := newInstagramCore(graphConfig(url))
	core.imagePollAttempts = 3
	core.imagePollInterval = time.Millisecond
	core.videoPollAttempts = 5
	core.videoPollInterval = time.Millisecond
	return core
}

func TestInstagramFeedContainerFlow(t *testing.T) {
	statusSequence := []string{"IN_PROGRESS", "FINISHED"}
	var statusCalls int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/ig-1/media":
			require.NoError(t, r.ParseForm())
			require.Equal(t, "https://cdn.example.com/a.jpg", r.PostForm.Get("image_url"))
			json.NewEncoder(w).Encode(map[string]string{"id": "container-1"})
		case "/container-1":
			status := statusSequence[statusCalls]
			statusCalls++
			json.NewEncoder(w).Encode(map[string]string{"status_code": status, "id": "container-1"})
		case "/ig-1/media_publish":
			require.NoError(t, r.ParseForm())
			require.Equal(t, "container-1", r.PostForm.Get("creation_id"))
			json.NewEncoder(w).Encode(map[string]string{"id": "media-42"})
		case "/media-42":
			json.NewEncoder(w).Encode(map[string]string{"permalink": "https://instagram.com/p/abc"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	p := &InstagramFeedPublisher{core: fastCore(server.URL)}
	res := p.Publish(context.Background(), Credential{AccountID: "ig-1", AccessToken: "tok"},
		Content{Body: "caption", AssetURL: "https://cdn.example.com/a.jpg"})

	require.True(t, res.Success)
	require.Equal(t, "media-42", res.ExternalID)
	require.Equal(t, "https://instagram.com/p/abc", res.ExternalURL)
	require.Equal(t, 2, statusCalls)
}

func TestInstagramStoryOmitsExternalURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/ig-1/media":
			require.NoError(t, r.ParseForm())
			require.Equal(t, "STORIES", r.PostForm.Get("media_type"))
			json.NewEncoder(w).Encode(map[string]string{"id": "container-2"})
		case "/container-2":
			json.NewEncoder(w).Encode(map[string]string{"status_code": "FINISHED"})
		case "/ig-1/media_publish":
			json.NewEncoder(w).Encode(map[string]string{"id": "story-7"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	p := &InstagramStoryPublisher{core: fastCore(server.URL)}
	res := p.Publish(context.Background(), Credential{AccountID: "ig-1", AccessToken: "tok"},
		Content{Body: "story", AssetURL: "https://cdn.example.com/b.jpg"})

	require.True(t, res.Success)
	require.Equal(t, "story-7", res.ExternalID)
	require.Empty(t, res.ExternalURL)
}

func TestInstagramPollExhaustionIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/ig-1/media":
			json.NewEncoder(w).Encode(map[string]string{"id": "container-3"})
		case "/container-3":
			json.NewEncoder(w).Encode(map[string]string{"status_code": "IN_PROGRESS"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	p := &InstagramFeedPublisher{core: fastCore(server.URL)}
	res := p.Publish(context.Background(), Credential{AccountID: "ig-1", AccessToken: "tok"},
		Content{Body: "x", AssetURL: "https://cdn.example.com/c.jpg"})

	require.False(t, res.Success)
	require.Equal(t, KindTransient, res.Kind)
	require.Contains(t, res.Err, "not ready")
}

func TestInstagramMediaNotReadyAfterFinishedIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/ig-1/media":
			json.NewEncoder(w).Encode(map[string]string{"id": "container-4"})
		case "/container-4":
			json.NewEncoder(w).Encode(map[string]string{"status_code": "FINISHED"})
		case "/ig-1/media_publish":
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "Media ID is not available", "code": 9007},
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	p := &InstagramFeedPublisher{core: fastCore(server.URL)}
	res := p.Publish(context.Background(), Credential{AccountID: "ig-1", AccessToken: "tok"},
		Content{Body: "x", AssetURL: "https://cdn.example.com/d.jpg"})

	require.False(t, res.Success)
	require.Equal(t, KindTransient, res.Kind)
}

func TestInstagramMissingAssetIsValidation(t *testing.T) {
	p := &InstagramFeedPublisher{core: fastCore("http://127.0.0.1:0")}
	res := p.Publish(context.Background(), Credential{AccountID: "ig-1"}, Content{Body: "no asset"})

	require.False(t, res.Success)
	require.Equal(t, KindValidate, res.Kind)
}
