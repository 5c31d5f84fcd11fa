package rooms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomIdFromStageArn(t *testing.T) {
	tcases := []struct {
		name       string
		arn        string
		expectedId string
		err        bool
	}{
		{
			name:       "valid stage arn",
			arn:        "arn:aws:ivs:us-east-1:123456789012:stage/abCd1234E5f6",
			expectedId: "abCd1234E5f6",
		},
		{
			name:       "valid simulator arn",
			arn:        "arn:sim:audiorooms:local:000000000000:stage/xyz789",
			expectedId: "xyz789",
		},
		{
			name: "missing arn prefix",
			arn:  "foo:aws:ivs:us-east-1:123456789012:stage/abc",
			err:  true,
		},
		{
			name: "too few segments",
			arn:  "arn:aws:ivs:stage/abc",
			err:  true,
		},
		{
			name: "wrong resource type",
			arn:  "arn:aws:ivs:us-east-1:123456789012:channel/abc",
			err:  true,
		},
		{
			name: "missing resource id",
			arn:  "arn:aws:ivs:us-east-1:123456789012:stage/",
			err:  true,
		},
		{
			name: "no resource separator",
			arn:  "arn:aws:ivs:us-east-1:123456789012:stage",
			err:  true,
		},
		{
			name: "empty arn",
			arn:  "",
			err:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := RoomIdFromStageArn(tc.arn)
			if tc.err {
				assert.Error(t, err, "expected error for arn: %s", tc.arn)
				return
			}
			assert.NoError(t, err, "expected no error for arn: %s", tc.arn)
			assert.Equal(t, tc.expectedId, id, "expected derived room id to match")
		})
	}
}
