// Package talk is the ha-sip integration: SIP call-control services that
// write commands to the add-on's stdin, and a webhook that folds the
// add-on's call events into a per-entry call state.
package talk

const (
	Domain = "hacs_unifi_talk"

	// EventWebhook carries every raw webhook payload on the event bus.
	EventWebhook = "hacs_unifi_talk_webhook"

	signalCallState = "hacs_unifi_talk_call_state"

	webhookName = "ha-sip"

	DefaultSIPHost = "192.168.1.1"
)

// Service names. Each matches the "command" discriminator it sends.
const (
	ServiceDial          = "dial"
	ServiceHangup        = "hangup"
	ServiceSendDTMF      = "send_dtmf"
	ServiceTransfer      = "transfer"
	ServiceBridgeAudio   = "bridge_audio"
	ServicePlayMessage   = "play_message"
	ServicePlayAudioFile = "play_audio_file"
	ServiceStopPlayback  = "stop_playback"
	ServiceAnswer        = "answer"
)

// Add-on event names that touch the retained fields.
const (
	EventIdle         = "idle"
	EventDTMFDigit    = "dtmf_digit"
	EventPlaybackDone = "playback_done"
)

// SignalCallState is the dispatcher signal fired after each merge for entryID.
func SignalCallState(entryID string) string {
	return signalCallState + "_" + entryID
}
