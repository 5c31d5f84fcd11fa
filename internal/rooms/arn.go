package rooms

import (
	"fmt"
	"strings"
)

// RoomIdFromStageArn derives a room id from a stage ARN's resource id,
// e.g. arn:aws:ivs:us-east-1:123456789012:stage/abCd1234E5f6 -> abCd1234E5f6.
// The derivation is a pure function of the ARN so the id can always be
// re-derived from the stage reference alone.
func RoomIdFromStageArn(arn string) (string, error) {
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) != 6 || parts[0] != "arn" {
		return "", fmt.Errorf("invalid stage arn %q", arn)
	}

	resourceType, resourceId, ok := strings.Cut(parts[5], "/")
	if !ok || resourceType != "stage" || resourceId == "" {
		return "", fmt.Errorf("invalid stage arn resource %q", parts[5])
	}

	return resourceId, nil
}
