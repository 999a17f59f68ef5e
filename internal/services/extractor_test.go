package services

import (
	"testing"

	"discover/internal/containerizer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExtractor(t *testing.T, grammar string) *Extractor {
	t.Helper()
	e, err := NewExtractor(ExtractorConfig{
		Variable: "DISCOVER",
		Grammar:  grammar,
		HostID:   "h1",
		Realm:    "prod",
		HostIP:   "10.0.0.5",
	})
	require.NoError(t, err)
	return e
}

func published(ports ...containerizer.PortKey) map[containerizer.PortKey][]containerizer.HostBinding {
	m := make(map[containerizer.PortKey][]containerizer.HostBinding)
	for _, p := range ports {
		m[p] = []containerizer.HostBinding{{HostIP: "0.0.0.0", HostPort: p.Port}}
	}
	return m
}

func TestExtract_WebExample(t *testing.T) {
	e := testExtractor(t, GrammarDefault)
	meta := containerizer.ContainerMeta{
		ID:    "c1",
		Env:   map[string]string{"DISCOVER": "web:80/tcp"},
		Ports: published(containerizer.PortKey{Port: 80, Protocol: "tcp"}),
	}

	descs, errs := e.Extract(meta)
	assert.Empty(t, errs)
	require.Len(t, descs, 1)
	assert.Equal(t, Descriptor{
		Name:        "web",
		HostID:      "h1",
		Realm:       "prod",
		IP:          "10.0.0.5",
		Port:        80,
		Protocol:    ProtocolTCP,
		ContainerID: "c1",
	}, descs[0])
	assert.Equal(t, "10.0.0.5:80", descs[0].Address())
}

func TestExtract_NoVariable(t *testing.T) {
	e := testExtractor(t, GrammarDefault)
	descs, errs := e.Extract(containerizer.ContainerMeta{
		ID:  "c1",
		Env: map[string]string{"PATH": "/bin"},
	})
	assert.Empty(t, descs)
	assert.Empty(t, errs)
}

func TestExtract_LabelFallback(t *testing.T) {
	e := testExtractor(t, GrammarDefault)
	descs, errs := e.Extract(containerizer.ContainerMeta{
		ID:          "c1",
		Labels:      map[string]string{"DISCOVER": "dns:53/udp"},
		HostNetwork: true,
	})
	assert.Empty(t, errs)
	require.Len(t, descs, 1)
	assert.Equal(t, ProtocolUDP, descs[0].Protocol)
	assert.Equal(t, 53, descs[0].Port)
}

func TestExtract_ValidAndMalformedMix(t *testing.T) {
	ports := published(
		containerizer.PortKey{Port: 80, Protocol: "tcp"},
		containerizer.PortKey{Port: 53, Protocol: "udp"},
		containerizer.PortKey{Port: 9100, Protocol: "tcp"},
	)
	ports[containerizer.PortKey{Port: 443, Protocol: "tcp"}] = []containerizer.HostBinding{{HostIP: "0.0.0.0", HostPort: 32768}}

	tests := []struct {
		name          string
		value         string
		wantNames     []string
		wantMalformed int
	}{
		{
			name:      "single",
			value:     "web:80",
			wantNames: []string{"web"},
		},
		{
			name:      "multiple",
			value:     "web:80/tcp, dns:53/udp,metrics:9100#internal+scrape",
			wantNames: []string{"dns", "metrics", "web"},
		},
		{
			name:          "malformed interleaved",
			value:         "web:80,bogus,dns:53/udp,api:notaport,bad name:80,metrics:9100/sctp",
			wantNames:     []string{"dns", "web"},
			wantMalformed: 4,
		},
		{
			name:          "unpublished port",
			value:         "web:80,admin:8080",
			wantNames:     []string{"web"},
			wantMalformed: 1,
		},
		{
			name:          "port out of range",
			value:         "web:0,api:70000,dns:53/udp",
			wantNames:     []string{"dns"},
			wantMalformed: 2,
		},
		{
			name:          "duplicate identity",
			value:         "web:80,web:80",
			wantNames:     []string{"web"},
			wantMalformed: 1,
		},
		{
			name:      "published on another host port",
			value:     "tls:443",
			wantNames: []string{"tls"},
		},
		{
			name:      "empty entries ignored",
			value:     " , web:80 ,,",
			wantNames: []string{"web"},
		},
		{
			name:          "all malformed",
			value:         "::,#,/udp",
			wantMalformed: 3,
		},
	}

	e := testExtractor(t, GrammarDefault)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			descs, errs := e.Extract(containerizer.ContainerMeta{
				ID:    "c1",
				Env:   map[string]string{"DISCOVER": tt.value},
				Ports: ports,
			})

			var names []string
			for _, d := range descs {
				names = append(names, d.Name)
			}
			assert.Equal(t, tt.wantNames, names)
			assert.Len(t, errs, tt.wantMalformed)
			for _, err := range errs {
				assert.True(t, IsMalformed(err), "unexpected error type: %v", err)
				assert.Contains(t, err.Error(), "c1")
			}
		})
	}
}

func TestExtract_ResolvesHostPort(t *testing.T) {
	e := testExtractor(t, GrammarDefault)
	descs, errs := e.Extract(containerizer.ContainerMeta{
		ID:  "c1",
		Env: map[string]string{"DISCOVER": "tls:443"},
		Ports: map[containerizer.PortKey][]containerizer.HostBinding{
			{Port: 443, Protocol: "tcp"}: {{HostIP: "0.0.0.0", HostPort: 32768}, {HostIP: "::", HostPort: 32768}},
		},
	})
	assert.Empty(t, errs)
	require.Len(t, descs, 1)
	assert.Equal(t, 32768, descs[0].Port)
}

func TestExtract_Deterministic(t *testing.T) {
	e := testExtractor(t, GrammarDefault)
	meta := containerizer.ContainerMeta{
		ID:          "c1",
		Env:         map[string]string{"DISCOVER": "b:2#y+x+y,a:1,c:3/udp"},
		HostNetwork: true,
	}

	first, _ := e.Extract(meta)
	for i := 0; i < 10; i++ {
		again, _ := e.Extract(meta)
		assert.Equal(t, first, again)
	}
	require.Len(t, first, 3)
	assert.Equal(t, []string{"x", "y"}, first[1].Tags)
}

func TestExtract_JSONGrammar(t *testing.T) {
	e := testExtractor(t, GrammarJSON)
	descs, errs := e.Extract(containerizer.ContainerMeta{
		ID: "c1",
		Env: map[string]string{"DISCOVER": `[
			{"name":"web","port":80,"tags":["public"]},
			{"name":"dns","port":53,"protocol":"udp"},
			{"name":"","port":81},
			{"name":"x","port":"eighty"}
		]`},
		HostNetwork: true,
	})
	assert.Len(t, errs, 2)
	require.Len(t, descs, 2)
	assert.Equal(t, "dns", descs[0].Name)
	assert.Equal(t, ProtocolUDP, descs[0].Protocol)
	assert.Equal(t, []string{"public"}, descs[1].Tags)
}

func TestNewParser(t *testing.T) {
	p, err := NewParser("")
	require.NoError(t, err)
	assert.IsType(t, DefaultParser{}, p)

	p, err = NewParser("JSON")
	require.NoError(t, err)
	assert.IsType(t, JSONParser{}, p)

	_, err = NewParser("xml")
	assert.Error(t, err)
}

func TestJSONParser_NotJSON(t *testing.T) {
	decls, errs := JSONParser{}.Parse("web:80")
	assert.Empty(t, decls)
	require.Len(t, errs, 1)
	assert.True(t, IsMalformed(errs[0]))
}

func TestJSONParser_SingleObject(t *testing.T) {
	decls, errs := JSONParser{}.Parse(`{"name":"web","port":8080}`)
	assert.Empty(t, errs)
	require.Len(t, decls, 1)
	assert.Equal(t, ProtocolTCP, decls[0].Protocol)
}

type fixedParser struct{ decls []Declaration }

func (f fixedParser) Parse(string) ([]Declaration, []error) { return f.decls, nil }

func TestNewExtractorWithParser(t *testing.T) {
	e := NewExtractorWithParser(ExtractorConfig{Variable: "SVC", HostID: "h1", Realm: "r", HostIP: "1.2.3.4"},
		fixedParser{decls: []Declaration{{Name: "custom", Port: 7000, Protocol: ProtocolTCP}}})

	descs, errs := e.Extract(containerizer.ContainerMeta{ID: "c9", Env: map[string]string{"SVC": "anything"}, HostNetwork: true})
	assert.Empty(t, errs)
	require.Len(t, descs, 1)
	assert.Equal(t, "custom", descs[0].Name)
	assert.Equal(t, "c9", descs[0].ContainerID)
}

func TestDescriptorEqual(t *testing.T) {
	a := Descriptor{Name: "web", HostID: "h1", Realm: "prod", IP: "10.0.0.5", Port: 80, Protocol: ProtocolTCP, ContainerID: "c1", Tags: []string{"a"}}
	b := a
	assert.True(t, a.Equal(b))

	b.Tags = []string{"b"}
	assert.False(t, a.Equal(b))

	b = a
	b.ContainerID = "c2"
	assert.False(t, a.Equal(b))
}
