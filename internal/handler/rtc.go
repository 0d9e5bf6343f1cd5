package handler

import (
	"net/http"

	pion "github.com/pion/webrtc/v4"

	"github.com/momoso/api/internal/config"
)

// RTCHandler serves WebRTC client configuration
type RTCHandler struct {
	iceServers []pion.ICEServer
}

// NewRTCHandler builds the ICE server list once from config
func NewRTCHandler(cfg config.RelayConfig) *RTCHandler {
	var servers []pion.ICEServer
	if len(cfg.STUNURLs) > 0 {
		servers = append(servers, pion.ICEServer{URLs: cfg.STUNURLs})
	}
	if len(cfg.TURNURLs) > 0 {
		servers = append(servers, pion.ICEServer{
			URLs:       cfg.TURNURLs,
			Username:   cfg.TURNUsername,
			Credential: cfg.TURNCredential,
		})
	}
	if servers == nil {
		servers = []pion.ICEServer{}
	}
	return &RTCHandler{iceServers: servers}
}

// ICEConfig mirrors RTCConfiguration on the browser side
type ICEConfig struct {
	ICEServers         []pion.ICEServer `json:"iceServers"`
	ICETransportPolicy string           `json:"iceTransportPolicy"`
}

// ICEServers handles GET /v1/rtc/ice-servers
func (h *RTCHandler) ICEServers(w http.ResponseWriter, r *http.Request) {
	WriteData(w, http.StatusOK, ICEConfig{
		ICEServers:         h.iceServers,
		ICETransportPolicy: pion.ICETransportPolicyAll.String(),
	}, map[string]string{
		"relay": "/v1/relay/ws/{room}",
	})
}
