package twilio

import (
	"encoding/xml"
	"fmt"
)

// TwiML verbs used by the answer webhook. Only the subset this system emits
// is modeled.
type twimlResponse struct {
	XMLName xml.Name      `xml:"Response"`
	Say     *twimlSay     `xml:"Say,omitempty"`
	Pause   *twimlPause   `xml:"Pause,omitempty"`
	Connect *twimlConnect `xml:"Connect,omitempty"`
}

type twimlSay struct {
	Voice    string `xml:"voice,attr"`
	Language string `xml:"language,attr"`
	Text     string `xml:",chardata"`
}

type twimlPause struct {
	Length int `xml:"length,attr"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL   string `xml:"url,attr"`
	Track string `xml:"track,attr"`
	Name  string `xml:"name,attr"`
}

// AnswerTwiML builds the answer webhook response: a short spoken bridge
// announcement, a one second pause, then a bidirectional media stream to
// streamURL. The stream URL carries the access token as a query parameter.
func AnswerTwiML(greeting, streamURL string) ([]byte, error) {
	doc := twimlResponse{
		Say: &twimlSay{
			Voice:    "Polly.Filiz",
			Language: "tr-TR",
			Text:     greeting,
		},
		Pause: &twimlPause{Length: 1},
		Connect: &twimlConnect{
			Stream: twimlStream{
				URL:   streamURL,
				Track: "inbound_track",
				Name:  "ai_stream",
			},
		},
	}

	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TwiML: %w", err)
	}

	return append([]byte(xml.Header), body...), nil
}
