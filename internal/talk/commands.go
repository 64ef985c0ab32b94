package talk

import (
	"ha-sip-bridge/internal/sipuri"
)

// Defaults applied to optional service fields.
const (
	DefaultRingTimeout = 300
	DefaultSIPAccount  = 1
	DefaultDTMFMethod  = "in_band"
)

// Request is a validated service call that knows how to become an add-on
// command. Target is the normalized number, used for audit.
type Request interface {
	Service() string
	Command(host string) (cmd any, target string)
}

// NewRequest returns the empty request struct for service, or false.
func NewRequest(service string) (Request, bool) {
	switch service {
	case ServiceDial:
		return &DialRequest{}, true
	case ServiceHangup:
		return &HangupRequest{}, true
	case ServiceSendDTMF:
		return &SendDTMFRequest{}, true
	case ServiceTransfer:
		return &TransferRequest{}, true
	case ServiceBridgeAudio:
		return &BridgeAudioRequest{}, true
	case ServicePlayMessage:
		return &PlayMessageRequest{}, true
	case ServicePlayAudioFile:
		return &PlayAudioFileRequest{}, true
	case ServiceStopPlayback:
		return &StopPlaybackRequest{}, true
	case ServiceAnswer:
		return &AnswerRequest{}, true
	default:
		return nil, false
	}
}

// Services lists every service the integration registers.
func Services() []string {
	return []string{
		ServiceDial, ServiceHangup, ServiceSendDTMF, ServiceTransfer, ServiceBridgeAudio,
		ServicePlayMessage, ServicePlayAudioFile, ServiceStopPlayback, ServiceAnswer,
	}
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func boolOr(p *bool) bool {
	return p != nil && *p
}

func dictOr(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// --- dial ---

type DialRequest struct {
	Number        string         `json:"number" validate:"required"`
	RingTimeout   *int           `json:"ring_timeout"`
	SIPAccount    *int           `json:"sip_account"`
	Menu          map[string]any `json:"menu"`
	WebhookToCall map[string]any `json:"webhook_to_call"`
}

type DialCommand struct {
	Command       string         `json:"command"`
	Number        string         `json:"number"`
	RingTimeout   int            `json:"ring_timeout"`
	SIPAccount    int            `json:"sip_account"`
	WebhookToCall map[string]any `json:"webhook_to_call"`
	Menu          map[string]any `json:"menu"`
}

func (r *DialRequest) Service() string { return ServiceDial }

func (r *DialRequest) Command(host string) (any, string) {
	n := sipuri.Normalize(r.Number, host)
	return DialCommand{
		Command:       ServiceDial,
		Number:        n,
		RingTimeout:   intOr(r.RingTimeout, DefaultRingTimeout),
		SIPAccount:    intOr(r.SIPAccount, DefaultSIPAccount),
		WebhookToCall: dictOr(r.WebhookToCall),
		Menu:          dictOr(r.Menu),
	}, n
}

// --- hangup / stop_playback ---

type HangupRequest struct {
	Number string `json:"number" validate:"required"`
}

// NumberCommand is the payload of commands addressing a single call.
type NumberCommand struct {
	Command string `json:"command"`
	Number  string `json:"number"`
}

func (r *HangupRequest) Service() string { return ServiceHangup }

func (r *HangupRequest) Command(host string) (any, string) {
	n := sipuri.Normalize(r.Number, host)
	return NumberCommand{Command: ServiceHangup, Number: n}, n
}

type StopPlaybackRequest struct {
	Number string `json:"number" validate:"required"`
}

func (r *StopPlaybackRequest) Service() string { return ServiceStopPlayback }

func (r *StopPlaybackRequest) Command(host string) (any, string) {
	n := sipuri.Normalize(r.Number, host)
	return NumberCommand{Command: ServiceStopPlayback, Number: n}, n
}

// --- send_dtmf ---

type SendDTMFRequest struct {
	Number string  `json:"number" validate:"required"`
	Digits string  `json:"digits" validate:"required"`
	Method *string `json:"method" validate:"omitempty,oneof=in_band rfc2833 sip_info"`
}

type SendDTMFCommand struct {
	Command string `json:"command"`
	Number  string `json:"number"`
	Digits  string `json:"digits"`
	Method  string `json:"method"`
}

func (r *SendDTMFRequest) Service() string { return ServiceSendDTMF }

func (r *SendDTMFRequest) Command(host string) (any, string) {
	n := sipuri.Normalize(r.Number, host)
	method := DefaultDTMFMethod
	if r.Method != nil {
		method = *r.Method
	}
	return SendDTMFCommand{Command: ServiceSendDTMF, Number: n, Digits: r.Digits, Method: method}, n
}

// --- transfer ---

type TransferRequest struct {
	Number     string `json:"number" validate:"required"`
	TransferTo string `json:"transfer_to" validate:"required"`
}

type TransferCommand struct {
	Command    string `json:"command"`
	Number     string `json:"number"`
	TransferTo string `json:"transfer_to"`
}

func (r *TransferRequest) Service() string { return ServiceTransfer }

func (r *TransferRequest) Command(host string) (any, string) {
	n := sipuri.Normalize(r.Number, host)
	return TransferCommand{
		Command:    ServiceTransfer,
		Number:     n,
		TransferTo: sipuri.Normalize(r.TransferTo, host),
	}, n
}

// --- bridge_audio ---

type BridgeAudioRequest struct {
	Number   string `json:"number" validate:"required"`
	BridgeTo string `json:"bridge_to" validate:"required"`
}

type BridgeAudioCommand struct {
	Command  string `json:"command"`
	Number   string `json:"number"`
	BridgeTo string `json:"bridge_to"`
}

func (r *BridgeAudioRequest) Service() string { return ServiceBridgeAudio }

func (r *BridgeAudioRequest) Command(host string) (any, string) {
	n := sipuri.Normalize(r.Number, host)
	return BridgeAudioCommand{
		Command:  ServiceBridgeAudio,
		Number:   n,
		BridgeTo: sipuri.Normalize(r.BridgeTo, host),
	}, n
}

// --- play_message ---

type PlayMessageRequest struct {
	Number               string  `json:"number" validate:"required"`
	Message              string  `json:"message" validate:"required"`
	TTSLanguage          *string `json:"tts_language"`
	CacheAudio           *bool   `json:"cache_audio"`
	WaitForAudioToFinish *bool   `json:"wait_for_audio_to_finish"`
}

// PlayMessageCommand omits tts_language when unset so the add-on applies
// its own default.
type PlayMessageCommand struct {
	Command              string `json:"command"`
	Number               string `json:"number"`
	Message              string `json:"message"`
	CacheAudio           bool   `json:"cache_audio"`
	WaitForAudioToFinish bool   `json:"wait_for_audio_to_finish"`
	TTSLanguage          string `json:"tts_language,omitempty"`
}

func (r *PlayMessageRequest) Service() string { return ServicePlayMessage }

func (r *PlayMessageRequest) Command(host string) (any, string) {
	n := sipuri.Normalize(r.Number, host)
	cmd := PlayMessageCommand{
		Command:              ServicePlayMessage,
		Number:               n,
		Message:              r.Message,
		CacheAudio:           boolOr(r.CacheAudio),
		WaitForAudioToFinish: boolOr(r.WaitForAudioToFinish),
	}
	if r.TTSLanguage != nil {
		cmd.TTSLanguage = *r.TTSLanguage
	}
	return cmd, n
}

// --- play_audio_file ---

type PlayAudioFileRequest struct {
	Number               string `json:"number" validate:"required"`
	AudioFile            string `json:"audio_file" validate:"required"`
	CacheAudio           *bool  `json:"cache_audio"`
	WaitForAudioToFinish *bool  `json:"wait_for_audio_to_finish"`
}

type PlayAudioFileCommand struct {
	Command              string `json:"command"`
	Number               string `json:"number"`
	AudioFile            string `json:"audio_file"`
	CacheAudio           bool   `json:"cache_audio"`
	WaitForAudioToFinish bool   `json:"wait_for_audio_to_finish"`
}

func (r *PlayAudioFileRequest) Service() string { return ServicePlayAudioFile }

func (r *PlayAudioFileRequest) Command(host string) (any, string) {
	n := sipuri.Normalize(r.Number, host)
	return PlayAudioFileCommand{
		Command:              ServicePlayAudioFile,
		Number:               n,
		AudioFile:            r.AudioFile,
		CacheAudio:           boolOr(r.CacheAudio),
		WaitForAudioToFinish: boolOr(r.WaitForAudioToFinish),
	}, n
}

// --- answer ---

// AnswerRequest.Number is the add-on's internal call id, not a dialable
// address, and is never normalized.
type AnswerRequest struct {
	Number        string         `json:"number" validate:"required"`
	Menu          map[string]any `json:"menu"`
	WebhookToCall map[string]any `json:"webhook_to_call"`
}

type AnswerCommand struct {
	Command       string         `json:"command"`
	Number        string         `json:"number"`
	WebhookToCall map[string]any `json:"webhook_to_call"`
	Menu          map[string]any `json:"menu"`
}

func (r *AnswerRequest) Service() string { return ServiceAnswer }

func (r *AnswerRequest) Command(string) (any, string) {
	return AnswerCommand{
		Command:       ServiceAnswer,
		Number:        r.Number,
		WebhookToCall: dictOr(r.WebhookToCall),
		Menu:          dictOr(r.Menu),
	}, r.Number
}
