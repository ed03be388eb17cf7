package gpuerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrors_AsThroughWrapping(t *testing.T) {
	base := &VkError{Call: "vkQueueSubmit", Result: -4}
	wrapped := fmt.Errorf("submitting scan pass: %w", base)

	var vkErr *VkError
	if !errors.As(wrapped, &vkErr) {
		t.Fatal("errors.As failed through wrapping")
	}
	if vkErr.Call != "vkQueueSubmit" || vkErr.Result != -4 {
		t.Errorf("unwrapped = %+v", vkErr)
	}
}

func TestErrors_Messages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&UnsupportedDevice{Reason: "no queue family"}, "does not meet requirements"},
		{&UnsupportedInstance{Missing: []string{"VK_KHR_surface"}}, "VK_KHR_surface"},
		{&VkError{Call: "vkCreateImage", Result: -2}, "vkCreateImage"},
		{&NoSuitableMemoryType{TypeFilter: 0xff}, "0xff"},
		{&MonitorsMismatch{}, "monitor"},
		{&NoDisplay{}, "display"},
		{&DeviceLost{Reason: "submit"}, "device lost"},
		{&InvalidExtent{}, "zero extent"},
	}

	for _, tt := range tests {
		if !strings.Contains(tt.err.Error(), tt.want) {
			t.Errorf("%T message %q does not mention %q", tt.err, tt.err.Error(), tt.want)
		}
	}
}
