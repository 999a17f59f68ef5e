package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParser_Parse(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		want      []Declaration
		malformed int
	}{
		{
			name:  "single with protocol",
			value: "web:80/tcp",
			want:  []Declaration{{Name: "web", Port: 80, Protocol: ProtocolTCP, Raw: "web:80/tcp"}},
		},
		{
			name:  "protocol defaults to tcp",
			value: "api:8080",
			want:  []Declaration{{Name: "api", Port: 8080, Protocol: ProtocolTCP, Raw: "api:8080"}},
		},
		{
			name:  "udp with tags sorted and deduplicated",
			value: "dns:53/udp#primary+internal+primary",
			want: []Declaration{{
				Name: "dns", Port: 53, Protocol: ProtocolUDP,
				Tags: []string{"internal", "primary"},
				Raw:  "dns:53/udp#primary+internal+primary",
			}},
		},
		{
			name:  "several with whitespace",
			value: " web:80/tcp , dns:53/UDP ",
			want: []Declaration{
				{Name: "web", Port: 80, Protocol: ProtocolTCP, Raw: "web:80/tcp"},
				{Name: "dns", Port: 53, Protocol: ProtocolUDP, Raw: "dns:53/UDP"},
			},
		},
		{name: "empty items are ignored", value: " , ,"},
		{name: "missing port", value: "web", malformed: 1},
		{name: "port not a number", value: "web:http", malformed: 1},
		{name: "port out of range", value: "web:70000", malformed: 1},
		{name: "port zero", value: "web:0", malformed: 1},
		{name: "unknown protocol", value: "web:80/sctp", malformed: 1},
		{name: "bad name", value: "we b:80", malformed: 1},
		{name: "empty tag", value: "web:80#", malformed: 1},
		{
			name:      "malformed does not stop the rest",
			value:     "web:80/tcp,broken,dns:53/udp",
			malformed: 1,
			want: []Declaration{
				{Name: "web", Port: 80, Protocol: ProtocolTCP, Raw: "web:80/tcp"},
				{Name: "dns", Port: 53, Protocol: ProtocolUDP, Raw: "dns:53/udp"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decls, errs := DefaultParser{}.Parse(tt.value)
			assert.Equal(t, tt.want, decls)
			require.Len(t, errs, tt.malformed)
			for _, err := range errs {
				assert.True(t, IsMalformed(err), "expected malformed declaration error, got %v", err)
			}
		})
	}
}

func TestJSONParser_Array(t *testing.T) {
	decls, errs := JSONParser{}.Parse(`[
		{"name":"web","port":80,"tags":["public"]},
		{"name":"dns","port":53,"protocol":"udp"},
		{"name":"bad","port":-1}
	]`)

	require.Len(t, errs, 1)
	assert.True(t, IsMalformed(errs[0]))
	assert.Contains(t, errs[0].Error(), "out of range")

	require.Len(t, decls, 2)
	assert.Equal(t, "web", decls[0].Name)
	assert.Equal(t, ProtocolTCP, decls[0].Protocol)
	assert.Equal(t, []string{"public"}, decls[0].Tags)
	assert.Equal(t, "dns", decls[1].Name)
	assert.Equal(t, ProtocolUDP, decls[1].Protocol)
}

func TestMalformedDeclarationError_Error(t *testing.T) {
	err := &MalformedDeclarationError{Declaration: "web", Reason: "expected name:port"}
	assert.Equal(t, `malformed declaration "web": expected name:port`, err.Error())

	err.ContainerID = "0123456789abcdef"
	assert.Equal(t, `malformed declaration "web" in container 0123456789ab: expected name:port`, err.Error())
}
