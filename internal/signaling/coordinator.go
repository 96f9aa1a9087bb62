package signaling

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pion/sdp/v3"

	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/protocol"
	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/stream"
)

// Coordinator turns offer/answer requests into stream registrations plus
// descriptor payloads. Expected registry conditions come back as typed
// failure responses, never as errors that crash the calling loop.
type Coordinator struct {
	registry *stream.Registry
	logger   *slog.Logger
}

// OfferDescriptor is a locally generated offer: a fresh stream identifier
// and a session description embedding it. The identifier is not registered
// until the answer side creates the stream.
type OfferDescriptor struct {
	SDP      string            `json:"sdp"`
	Modality protocol.Modality `json:"modality"`
	Mode     protocol.Mode     `json:"mode"`
	WebRTCID string            `json:"webrtc_id"`
}

// NewCoordinator creates a signaling coordinator backed by the given registry.
func NewCoordinator(logger *slog.Logger, registry *stream.Registry) *Coordinator {
	return &Coordinator{
		registry: registry,
		logger:   logger,
	}
}

// CreateOffer generates a fresh stream identifier and a descriptor payload
// for it. The registry is not touched.
func (c *Coordinator) CreateOffer(modality protocol.Modality, mode protocol.Mode) (*OfferDescriptor, error) {
	if !modality.Valid() {
		return nil, stream.ErrInvalidModality
	}
	if !mode.Valid() {
		return nil, stream.ErrInvalidMode
	}

	webrtcID := uuid.NewString()
	desc, err := c.buildDescription(webrtcID, modality, mode)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Generated offer descriptor",
		slog.String("webrtc_id", webrtcID),
		slog.String("modality", string(modality)),
	)

	return &OfferDescriptor{
		SDP:      desc,
		Modality: modality,
		Mode:     mode,
		WebRTCID: webrtcID,
	}, nil
}

// CreateAnswer validates the offer, registers a new stream and returns the
// answer descriptor. Failures carry the specific error kind and a
// human-readable message in the response meta.
func (c *Coordinator) CreateAnswer(offer protocol.OfferRequest) *protocol.AnswerResponse {
	if !offer.Modality.Valid() {
		return failedAnswer(protocol.ErrorStreamCreationFailed, "invalid modality: "+string(offer.Modality))
	}
	if !offer.Mode.Valid() {
		return failedAnswer(protocol.ErrorStreamCreationFailed, "invalid mode: "+string(offer.Mode))
	}

	if offer.SDP == "" {
		return failedAnswer(protocol.ErrorStreamCreationFailed, "offer has no session description")
	}
	remote := sdp.SessionDescription{}
	if err := remote.Unmarshal([]byte(offer.SDP)); err != nil {
		c.logger.Warn("Rejecting offer with malformed session description",
			slog.String("error", err.Error()),
		)
		return failedAnswer(protocol.ErrorStreamCreationFailed, "malformed session description")
	}

	webrtcID := uuid.NewString()

	s, err := c.registry.Create(webrtcID, offer.Modality, offer.Mode)
	if err != nil {
		switch {
		case errors.Is(err, stream.ErrCapacityExceeded):
			return &protocol.AnswerResponse{
				Status: protocol.AnswerFailed,
				Meta: &protocol.AnswerMeta{
					Error: protocol.ErrorConcurrencyLimit,
					Limit: c.registry.MaxStreams(),
				},
			}
		default:
			return failedAnswer(protocol.ErrorStreamCreationFailed, err.Error())
		}
	}

	desc, err := c.buildDescription(webrtcID, offer.Modality, offer.Mode)
	if err != nil {
		// Roll the registration back so a descriptor failure does not leak
		// a stream nobody will ever stream to.
		if rerr := c.registry.Remove(webrtcID); rerr != nil {
			c.logger.Error("Failed to roll back stream after descriptor error",
				slog.String("webrtc_id", webrtcID),
				slog.String("error", rerr.Error()),
			)
		}
		return failedAnswer(protocol.ErrorInternalServer, err.Error())
	}

	c.logger.Info("Answer created",
		slog.String("webrtc_id", webrtcID),
		slog.String("modality", string(offer.Modality)),
		slog.String("mode", string(offer.Mode)),
	)

	return &protocol.AnswerResponse{
		Status:   protocol.AnswerSuccess,
		SDP:      desc,
		WebRTCID: webrtcID,
		Meta: &protocol.AnswerMeta{
			Modality:  offer.Modality,
			Mode:      offer.Mode,
			CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
		},
	}
}

func failedAnswer(code, message string) *protocol.AnswerResponse {
	return &protocol.AnswerResponse{
		Status: protocol.AnswerFailed,
		Meta: &protocol.AnswerMeta{
			Error:   code,
			Message: message,
		},
	}
}

// buildDescription synthesizes a session description embedding the stream
// identifier. The media sections mirror what browser peers expect for opus
// audio and VP8 video; codec negotiation itself is out of scope here.
func (c *Coordinator) buildDescription(webrtcID string, modality protocol.Modality, mode protocol.Mode) (string, error) {
	desc := sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      uint64(time.Now().Unix()),
			SessionVersion: 2,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: "127.0.0.1",
		},
		SessionName:      "fastrtc-audio-interface",
		TimeDescriptions: []sdp.TimeDescription{{}},
		Attributes: []sdp.Attribute{
			sdp.NewAttribute("group", bundleGroup(modality)),
			sdp.NewAttribute("msid-semantic", " WMS "+webrtcID),
		},
	}

	if modality.HasAudio() {
		desc.MediaDescriptions = append(desc.MediaDescriptions, &sdp.MediaDescription{
			MediaName: sdp.MediaName{
				Media:   "audio",
				Port:    sdp.RangedPort{Value: 9},
				Protos:  []string{"UDP", "TLS", "RTP", "SAVPF"},
				Formats: []string{"111"},
			},
			ConnectionInformation: defaultConnection(),
			Attributes: []sdp.Attribute{
				sdp.NewAttribute("mid", "audio"),
				sdp.NewPropertyAttribute(directionAttribute(mode)),
				sdp.NewAttribute("rtpmap", "111 opus/48000/2"),
				sdp.NewAttribute("fmtp", "111 minptime=10;useinbandfec=1"),
				sdp.NewAttribute("ssrc", "1 cname:"+webrtcID),
				sdp.NewPropertyAttribute("rtcp-mux"),
			},
		})
	}

	if modality.HasVideo() {
		desc.MediaDescriptions = append(desc.MediaDescriptions, &sdp.MediaDescription{
			MediaName: sdp.MediaName{
				Media:   "video",
				Port:    sdp.RangedPort{Value: 9},
				Protos:  []string{"UDP", "TLS", "RTP", "SAVPF"},
				Formats: []string{"96"},
			},
			ConnectionInformation: defaultConnection(),
			Attributes: []sdp.Attribute{
				sdp.NewAttribute("mid", "video"),
				sdp.NewPropertyAttribute(directionAttribute(mode)),
				sdp.NewAttribute("rtpmap", "96 VP8/90000"),
				sdp.NewAttribute("ssrc", "2 cname:"+webrtcID),
				sdp.NewPropertyAttribute("rtcp-mux"),
			},
		})
	}

	payload, err := desc.Marshal()
	if err != nil {
		return "", err
	}

	return string(payload), nil
}

func defaultConnection() *sdp.ConnectionInformation {
	return &sdp.ConnectionInformation{
		NetworkType: "IN",
		AddressType: "IP4",
		Address:     &sdp.Address{Address: "0.0.0.0"},
	}
}

func bundleGroup(modality protocol.Modality) string {
	switch modality {
	case protocol.ModalityVideo:
		return "BUNDLE video"
	case protocol.ModalityAudioVideo:
		return "BUNDLE audio video"
	default:
		return "BUNDLE audio"
	}
}

func directionAttribute(mode protocol.Mode) string {
	switch mode {
	case protocol.ModeSend:
		return "sendonly"
	case protocol.ModeReceive:
		return "recvonly"
	default:
		return "sendrecv"
	}
}
