package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromBuildInfo(t *testing.T) {
	tests := []struct {
		name     string
		info     *debug.BuildInfo
		expected string
	}{
		{
			name:     "main module",
			info:     &debug.BuildInfo{Main: debug.Module{Path: lynxModule, Version: "v0.3.0"}},
			expected: "v0.3.0",
		},
		{
			name:     "main module in development",
			info:     &debug.BuildInfo{Main: debug.Module{Path: lynxModule, Version: "(devel)"}},
			expected: Default,
		},
		{
			name: "dependency",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "example.com/app", Version: "v1.0.0"},
				Deps: []*debug.Module{
					{Path: "github.com/sirupsen/logrus", Version: "v1.9.3"},
					{Path: lynxModule, Version: "v0.2.1"},
				},
			},
			expected: "v0.2.1",
		},
		{
			name: "replaced dependency",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "example.com/app"},
				Deps: []*debug.Module{{
					Path:    lynxModule,
					Version: "v0.2.1",
					Replace: &debug.Module{Path: lynxModule, Version: "v0.0.0-20240101000000-abcdef123456"},
				}},
			},
			expected: "v0.0.0-20240101000000-abcdef123456",
		},
		{
			name:     "not found",
			info:     &debug.BuildInfo{Main: debug.Module{Path: "example.com/app"}},
			expected: Default,
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, fromBuildInfo(tc.info))
		})
	}
}

func TestGetLynxVersion(t *testing.T) {
	old := version
	defer func() { version = old }()

	version = "v9.9.9"
	require.Equal(t, "v9.9.9", GetLynxVersion())

	version = ""
	require.NotEmpty(t, GetLynxVersion())
}
