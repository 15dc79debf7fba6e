package faceapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"gymdesk/internal/domain/enrollment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jpeg(name string) enrollment.Image {
	return enrollment.Image{Filename: name, ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff, 0xd9}}
}

func TestClient_AddFacesMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/add_faces/", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "41", r.FormValue("subject"))

		files := r.MultipartForm.File["images"]
		require.Len(t, files, 2)
		assert.Equal(t, "front.jpg", files[0].Filename)
		assert.Equal(t, "side.png", files[1].Filename)
		assert.Equal(t, "image/png", files[1].Header.Get("Content-Type"))

		_, _ = io.WriteString(w, `{"message":"Se procesaron 2 de 2 imágenes para '41'","subject":"41","successful":2,"failed":0}`)
	}))
	defer srv.Close()

	side := jpeg("side.png")
	side.ContentType = "image/png"
	res, err := NewClient(srv.URL, nil).AddFaces(context.Background(), "41", []enrollment.Image{jpeg("front.jpg"), side})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Successful)
	assert.Equal(t, "41", res.Subject)
}

func TestClient_AddFacesRejectsInvalidBatchLocally(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.AddFaces(context.Background(), "", []enrollment.Image{jpeg("a.jpg")})
	assert.ErrorIs(t, err, enrollment.ErrEmptySubject)

	_, err = c.AddFaces(context.Background(), "7", nil)
	assert.ErrorIs(t, err, enrollment.ErrNoImages)

	_, err = c.AddFaces(context.Background(), "7", []enrollment.Image{jpeg("a.gif")})
	assert.ErrorIs(t, err, enrollment.ErrBadExtension)

	assert.Zero(t, calls)
}

func TestClient_AddFacesErrorShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string detail", `{"detail":"Máximo 10 imágenes por solicitud. Recibidas: 11"}`, "Máximo 10 imágenes por solicitud. Recibidas: 11"},
		{"object detail", `{"detail":{"message":"No se pudo procesar ninguna imagen","errors":[{"file":"a.jpg","error":"sin rostro"}]}}`, "No se pudo procesar ninguna imagen (a.jpg: sin rostro)"},
		{"no body", ``, "face service returned status 400"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, nil).AddFaces(context.Background(), "3", []enrollment.Image{jpeg("a.jpg")})
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, http.StatusBadRequest, apiErr.Status)
			assert.EqualError(t, err, tt.want)
		})
	}
}

func TestClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = io.WriteString(w, `{"status":"healthy","compreface":"connected","upload_dir":true}`)
	}))
	defer srv.Close()

	h, err := NewClient(srv.URL, nil).Health(context.Background())
	require.NoError(t, err)
	assert.True(t, h.Healthy())
}

func TestClient_HealthUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).Health(context.Background())
	assert.ErrorContains(t, err, "503")
}
