package kkdai

import (
	"errors"
	"testing"

	kkdai "github.com/kkdai/youtube/v2"
)

func TestName(t *testing.T) {
	if got := (&Streamer{Pipe: true}).Name(); got != "kkdai-pipe" {
		t.Errorf("Name() = %q", got)
	}
	if got := (&Streamer{}).Name(); got != "kkdai-link" {
		t.Errorf("Name() = %q", got)
	}
}

func TestPickFormat(t *testing.T) {
	formats := kkdai.FormatList{
		{ItagNo: 18, MimeType: "video/mp4; codecs=\"avc1.42001E, mp4a.40.2\"", AudioChannels: 2, Bitrate: 500000},
		{ItagNo: 251, MimeType: "audio/webm; codecs=\"opus\"", AudioChannels: 2, Bitrate: 160000},
		{ItagNo: 137, MimeType: "video/mp4", AudioChannels: 0, Bitrate: 4000000},
	}

	f, err := pickFormat(formats)
	if err != nil {
		t.Fatalf("pickFormat() error = %v", err)
	}
	if f.ItagNo != 251 {
		t.Errorf("picked itag %d, want audio-only 251", f.ItagNo)
	}
}

func TestPickFormatNoAudio(t *testing.T) {
	_, err := pickFormat(kkdai.FormatList{{ItagNo: 137, MimeType: "video/mp4"}})
	if !errors.Is(err, ErrNoAudioFormat) {
		t.Errorf("err = %v, want ErrNoAudioFormat", err)
	}
}
