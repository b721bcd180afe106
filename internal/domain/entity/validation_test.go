package entity

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func parseIP(s string) net.IP {
	return net.ParseIP(s)
}

func TestValidateURL(t *testing.T) {
	cases := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"empty", "", true},
		{"valid https", "https://example.com/feed.xml", false},
		{"ftp scheme rejected", "ftp://example.com/feed.xml", true},
		{"missing host", "https://", true},
		{"too long", "https://example.com/" + string(make([]byte, 3000)), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateURL(tc.url)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	cases := []struct {
		ip   string
		want bool
	}{
		{"127.0.0.1", true},
		{"10.0.0.5", true},
		{"169.254.169.254", true},
		{"8.8.8.8", false},
	}
	for _, tc := range cases {
		t.Run(tc.ip, func(t *testing.T) {
			assert.Equal(t, tc.want, isPrivateIP(parseIP(tc.ip)))
		})
	}
}
