package version

import "testing"

func TestBuildVersion(t *testing.T) {
	tests := []struct {
		build    string
		revision string
		expected string
	}{
		{build: "", revision: "", expected: "0.1.0"},
		{build: "rc1", revision: "", expected: "0.1.0-rc1"},
		{build: "", revision: "0123456789ab", expected: "0.1.0-0123456789ab"},
		{build: "rc1", revision: "0123456789ab", expected: "0.1.0-rc1"},
		{build: "rc.1", revision: "0123456789ab", expected: "0.1.0"},
	}
	for _, test := range tests {
		result := buildVersion(test.build, test.revision)
		if result != test.expected {
			t.Errorf("TestBuildVersion: build %q, revision %q: Expected %s, found: %s",
				test.build, test.revision, test.expected, result)
		}
	}
}
