package organizer

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/chatocr/internal/region"
)

func obj(class string, x1, y1, x2, y2 float64) region.Object {
	return region.Object{ClassName: class, Confidence: 0.9, Box: region.NewBox(x1, y1, x2, y2)}
}

func byClass(objs ...region.Object) region.ByClass {
	c := region.ByClass{}
	for _, o := range objs {
		c.Add(o)
	}
	return c
}

func TestOrganize_NoChatWindowIsSentinel(t *testing.T) {
	tests := []struct {
		name string
		dets region.ByClass
	}{
		{"empty mapping", region.ByClass{}},
		{"nil mapping", nil},
		{"content only", byClass(obj(ClassSender, 0, 0, 10, 10), obj(ClassEmoji, 5, 5, 8, 8))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Organize(tt.dets, DefaultThreshold)
			assert.False(t, res.Screenshot)
			assert.Empty(t, res.Windows)
		})
	}
}

func TestOrganize_EmptyWindowListIsNotSentinel(t *testing.T) {
	res := Organize(region.ByClass{ClassChatWindow: {}}, DefaultThreshold)
	assert.True(t, res.Screenshot)
	assert.Empty(t, res.Windows)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestOrganize_OneRecordPerWindowInOrder(t *testing.T) {
	dets := byClass(
		obj(ClassChatWindow, 0, 0, 100, 100),
		obj(ClassChatWindow, 200, 0, 300, 100),
		obj(ClassChatWindow, 400, 0, 500, 100),
	)

	res := Organize(dets, DefaultThreshold)
	require.True(t, res.Screenshot)
	require.Len(t, res.Windows, 3)
	for i, w := range res.Windows {
		assert.Equal(t, dets[ClassChatWindow][i].Box, w.Box)
		assert.Empty(t, w.Content)
	}
}

func TestOrganize_ContentOrderFollowsClassThenInput(t *testing.T) {
	dets := byClass(
		obj(ClassEmoji, 10, 60, 20, 70),
		obj(ClassChatWindow, 0, 0, 100, 100),
		obj(ClassReceiver, 50, 30, 90, 40),
		obj(ClassSender, 10, 10, 50, 20),
		obj(ClassSender, 10, 45, 50, 55),
	)

	res := Organize(dets, DefaultThreshold)
	require.Len(t, res.Windows, 1)

	var classes []string
	for _, e := range res.Windows[0].Content {
		classes = append(classes, e.ClassName)
	}
	assert.Equal(t, []string{ClassSender, ClassSender, ClassReceiver, ClassEmoji}, classes)
	assert.Equal(t, region.NewBox(10, 10, 50, 20), res.Windows[0].Content[0].Detection.Box)
	assert.Equal(t, region.NewBox(10, 45, 50, 55), res.Windows[0].Content[1].Detection.Box)
}

func TestOrganize_ThresholdIsInclusive(t *testing.T) {
	window := obj(ClassChatWindow, 0, 0, 100, 100)

	atThreshold := Organize(byClass(window, obj(ClassSender, 92, 0, 102, 10)), DefaultThreshold)
	require.Len(t, atThreshold.Windows, 1)
	assert.Len(t, atThreshold.Windows[0].Content, 1)

	belowThreshold := Organize(byClass(window, obj(ClassSender, 92.0001, 0, 102.0001, 10)), DefaultThreshold)
	require.Len(t, belowThreshold.Windows, 1)
	assert.Empty(t, belowThreshold.Windows[0].Content)
}

func TestOrganize_DetectionInOverlappingWindows(t *testing.T) {
	dets := byClass(
		obj(ClassChatWindow, 0, 0, 100, 100),
		obj(ClassChatWindow, 0, 0, 120, 120),
		obj(ClassReceiver, 10, 10, 30, 30),
	)

	res := Organize(dets, DefaultThreshold)
	require.Len(t, res.Windows, 2)
	assert.Len(t, res.Windows[0].Content, 1)
	assert.Len(t, res.Windows[1].Content, 1)
	assert.Equal(t, res.Windows[0].Content[0], res.Windows[1].Content[0])
}

func TestOrganize_IgnoresUnknownClasses(t *testing.T) {
	dets := byClass(
		obj(ClassChatWindow, 0, 0, 100, 100),
		obj("avatar", 10, 10, 20, 20),
		obj("timestamp", 30, 30, 40, 40),
	)

	res := Organize(dets, DefaultThreshold)
	require.Len(t, res.Windows, 1)
	assert.Empty(t, res.Windows[0].Content)
}

func TestOrganize_ContentOutsideEveryWindow(t *testing.T) {
	dets := byClass(
		obj(ClassChatWindow, 0, 0, 100, 100),
		obj(ClassSender, 300, 300, 350, 320),
	)

	res := Organize(dets, DefaultThreshold)
	require.Len(t, res.Windows, 1)
	assert.Empty(t, res.Windows[0].Content)
	assert.Empty(t, res.Summary())
}

func TestOrganize_DoesNotMutateInput(t *testing.T) {
	dets := byClass(
		obj(ClassChatWindow, 0, 0, 100, 100),
		obj(ClassSender, 10, 10, 20, 20),
	)
	before := dets[ClassSender][0]

	_ = Organize(dets, DefaultThreshold)
	assert.Equal(t, before, dets[ClassSender][0])
	assert.Len(t, dets, 2)
}

func TestNew(t *testing.T) {
	o, err := New(Config{})
	require.NoError(t, err)
	assert.InDelta(t, DefaultThreshold, o.Config().Threshold, 1e-9)
	assert.Equal(t, ContentClasses(), o.Config().ContentClasses)

	_, err = New(Config{Threshold: 1.5})
	assert.Error(t, err)

	_, err = New(Config{Threshold: 0.5, ContentClasses: []string{ClassChatWindow}})
	assert.Error(t, err)
}

func TestOrganizer_CustomClassesAndThreshold(t *testing.T) {
	o, err := New(Config{Threshold: 0.5, ContentClasses: []string{ClassEmoji}})
	require.NoError(t, err)

	dets := byClass(
		obj(ClassChatWindow, 0, 0, 100, 100),
		obj(ClassSender, 10, 10, 20, 20),
		obj(ClassEmoji, 90, 0, 110, 10),
	)

	res := o.Organize(dets)
	require.Len(t, res.Windows, 1)
	require.Len(t, res.Windows[0].Content, 1)
	assert.Equal(t, ClassEmoji, res.Windows[0].Content[0].ClassName)

	strict := o.OrganizeWithThreshold(dets, 0.9)
	assert.Empty(t, strict.Windows[0].Content)
}

func TestOrganize_OutOfRangeThresholdFallsBack(t *testing.T) {
	dets := byClass(
		obj(ClassChatWindow, 0, 0, 100, 100),
		obj(ClassChatWindow, 200, 0, 300, 100),
		obj(ClassSender, 10, 10, 20, 20),
	)

	for _, threshold := range []float64{0, -1, 1.5, math.NaN()} {
		res := Organize(dets, threshold)
		require.Len(t, res.Windows, 2)
		assert.Len(t, res.Windows[0].Content, 1, "threshold %v", threshold)
		assert.Empty(t, res.Windows[1].Content, "threshold %v", threshold)
	}

	o, err := New(Config{Threshold: 0.5})
	require.NoError(t, err)
	partial := byClass(obj(ClassChatWindow, 0, 0, 100, 100), obj(ClassSender, 90, 0, 110, 10))
	assert.Len(t, o.OrganizeWithThreshold(partial, 0).Windows[0].Content, 1)
	assert.Empty(t, o.OrganizeWithThreshold(partial, 0.9).Windows[0].Content)
}

func TestResult_JSON(t *testing.T) {
	data, err := json.Marshal(NotScreenshot())
	require.NoError(t, err)
	assert.JSONEq(t, `"Not a Screenshot"`, string(data))

	res := Organize(byClass(
		obj(ClassChatWindow, 0, 0, 100, 100),
		obj(ClassSender, 10, 10, 20, 20),
	), DefaultThreshold)

	data, err = json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `[{
		"bbox": {"x1": 0, "y1": 0, "x2": 100, "y2": 100},
		"confidence": 0.9,
		"content": [{"sender": {"confidence": 0.9, "bbox": {"x1": 10, "y1": 10, "x2": 20, "y2": 20}}}]
	}]`, string(data))

	var decoded Result
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, res, decoded)

	var sentinel Result
	require.NoError(t, json.Unmarshal([]byte(`"Not a Screenshot"`), &sentinel))
	assert.False(t, sentinel.Screenshot)
	assert.Error(t, json.Unmarshal([]byte(`"whatever"`), &sentinel))
}

func TestWindow_CountAndSummary(t *testing.T) {
	res := Organize(byClass(
		obj(ClassChatWindow, 0, 0, 100, 100),
		obj(ClassSender, 10, 10, 20, 20),
		obj(ClassSender, 10, 30, 20, 40),
		obj(ClassEmoji, 50, 50, 60, 60),
	), DefaultThreshold)

	assert.Equal(t, 2, res.Windows[0].Count(ClassSender))
	assert.Equal(t, 0, res.Windows[0].Count(ClassReceiver))
	assert.Equal(t, map[string]int{ClassSender: 2, ClassEmoji: 1}, res.Summary())
}
