package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/viper"
)

// apiClient wraps the perchd HTTP API for the commands.
type apiClient struct {
	http *resty.Client
}

// newLoginClient builds an unauthenticated client for the token endpoint.
func newLoginClient(baseURL string) *apiClient {
	r := resty.New()
	r.SetBaseURL(baseURL)
	r.SetHeader("Content-Type", "application/json")
	r.SetHeader("Accept", "application/json")
	// Pairing waits for a confirmation on the camera, so allow for a
	// human in the loop before giving up.
	r.SetTimeout(60 * time.Second)
	return &apiClient{http: r}
}

// newSessionClient builds a client from the saved daemon address and token.
func newSessionClient() *apiClient {
	baseURL := viper.GetString("daemon_url")
	token := viper.GetString("access_token")

	if baseURL == "" || token == "" {
		fmt.Println("Error: Not logged in. Please run 'perchctl login' first.")
		os.Exit(1)
	}

	c := newLoginClient(baseURL)
	c.http.SetAuthToken(token)
	return c
}

type tokenResult struct {
	ViewerID     string `json:"viewer_id"`
	ViewerName   string `json:"viewer_name"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type cameraInfo struct {
	CameraID      string `json:"cameraId"`
	Name          string `json:"name"`
	Status        string `json:"status"`
	MediaEndpoint string `json:"mediaEndpoint"`
}

type errorInfo struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type sessionInfo struct {
	Status           string       `json:"status"`
	IsWatching       bool         `json:"isWatching"`
	ConnectedCamera  *cameraInfo  `json:"connectedCamera"`
	AvailableCameras []cameraInfo `json:"availableCameras"`
	ReconnectAttempt int          `json:"reconnectAttempt"`
	LastError        *errorInfo   `json:"lastError"`
}

type pairingInfo struct {
	CameraID   string    `json:"cameraId"`
	CameraName string    `json:"cameraName"`
	PairingID  string    `json:"pairingId"`
	Method     string    `json:"method"`
	SavedAt    time.Time `json:"savedAt"`
}

type sessionEnvelope struct {
	Session sessionInfo `json:"session"`
}

type camerasEnvelope struct {
	Cameras []cameraInfo `json:"cameras"`
}

type pairingsEnvelope struct {
	Pairings []pairingInfo `json:"pairings"`
}

type apiError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

func errorFrom(resp *resty.Response) error {
	if apiErr, ok := resp.Error().(*apiError); ok && apiErr.Message != "" {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("daemon returned %s", resp.Status())
}

func (c *apiClient) postSession(path string, body interface{}) (*sessionInfo, error) {
	req := c.http.R().
		SetResult(&sessionEnvelope{}).
		SetError(&apiError{})
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Post(path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, errorFrom(resp)
	}

	env, ok := resp.Result().(*sessionEnvelope)
	if !ok {
		return nil, fmt.Errorf("failed to parse session response")
	}
	return &env.Session, nil
}

func (c *apiClient) issueToken(viewerName string) (*tokenResult, error) {
	body := map[string]string{}
	if viewerName != "" {
		body["viewerName"] = viewerName
	}

	resp, err := c.http.R().
		SetBody(body).
		SetResult(&tokenResult{}).
		SetError(&apiError{}).
		Post("/api/v1/auth/token")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, errorFrom(resp)
	}

	result, ok := resp.Result().(*tokenResult)
	if !ok {
		return nil, fmt.Errorf("failed to parse token response")
	}
	return result, nil
}

func (c *apiClient) pairPin(pin string) (*sessionInfo, error) {
	return c.postSession("/api/v1/session/pair/pin", map[string]string{"pin": pin})
}

func (c *apiClient) pairQR(payload []byte) (*sessionInfo, error) {
	return c.postSession("/api/v1/session/pair/qr", map[string]string{"payload": string(payload)})
}

func (c *apiClient) connect(cameraID string) (*sessionInfo, error) {
	return c.postSession("/api/v1/session/connect", map[string]string{"cameraId": cameraID})
}

func (c *apiClient) watch(cameraID string) (*sessionInfo, error) {
	return c.postSession("/api/v1/session/watch", map[string]string{"cameraId": cameraID})
}

func (c *apiClient) watchStop() (*sessionInfo, error) {
	return c.postSession("/api/v1/session/watch/stop", nil)
}

func (c *apiClient) disconnect() (*sessionInfo, error) {
	return c.postSession("/api/v1/session/disconnect", nil)
}

func (c *apiClient) reconnect() (*sessionInfo, error) {
	return c.postSession("/api/v1/session/reconnect", nil)
}

func (c *apiClient) state() (*sessionInfo, error) {
	resp, err := c.http.R().
		SetResult(&sessionEnvelope{}).
		SetError(&apiError{}).
		Get("/api/v1/session/state")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, errorFrom(resp)
	}

	env, ok := resp.Result().(*sessionEnvelope)
	if !ok {
		return nil, fmt.Errorf("failed to parse session response")
	}
	return &env.Session, nil
}

func (c *apiClient) cameras() ([]cameraInfo, error) {
	resp, err := c.http.R().
		SetResult(&camerasEnvelope{}).
		SetError(&apiError{}).
		Get("/api/v1/cameras")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, errorFrom(resp)
	}

	env, ok := resp.Result().(*camerasEnvelope)
	if !ok {
		return nil, fmt.Errorf("failed to parse cameras response")
	}
	return env.Cameras, nil
}

func (c *apiClient) pairings() ([]pairingInfo, error) {
	resp, err := c.http.R().
		SetResult(&pairingsEnvelope{}).
		SetError(&apiError{}).
		Get("/api/v1/pairings")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, errorFrom(resp)
	}

	env, ok := resp.Result().(*pairingsEnvelope)
	if !ok {
		return nil, fmt.Errorf("failed to parse pairings response")
	}
	return env.Pairings, nil
}

func (c *apiClient) forgetPairing(cameraID string) error {
	resp, err := c.http.R().
		SetError(&apiError{}).
		Delete("/api/v1/pairings/" + cameraID)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return errorFrom(resp)
	}
	return nil
}
