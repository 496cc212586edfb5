// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package pointer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/anisync/pkg/pointer"
)

func TestVal(t *testing.T) {
	assert.Equal(t, 0, pointer.Val[int](nil))
	assert.Equal(t, "Akira", pointer.Val(pointer.To("Akira")))
	assert.InDelta(t, 0.5, pointer.Fallback(nil, 0.5), 1e-9)
	assert.InDelta(t, 0.9, pointer.Fallback(pointer.To(0.9), 0.5), 1e-9)
}
