package contextstore

import (
	"bytes"
	"crypto/rand"
	"testing"

	"framecast/internal/stagedoc"
)

func TestSelectTierBoundary(t *testing.T) {
	const threshold = 350 * 1024
	tests := []struct {
		size int
		want stagedoc.Tier
	}{
		{0, stagedoc.TierInline},
		{threshold - 1, stagedoc.TierInline},
		{threshold, stagedoc.TierInline},
		{threshold + 1, stagedoc.TierOffloaded},
		{2 * 1024 * 1024, stagedoc.TierOffloaded},
	}
	for _, tc := range tests {
		if got := SelectTier(tc.size, threshold); got != tc.want {
			t.Fatalf("SelectTier(%d) = %s, want %s", tc.size, got, tc.want)
		}
		if again := SelectTier(tc.size, threshold); again != SelectTier(tc.size, threshold) {
			t.Fatalf("SelectTier(%d) not deterministic", tc.size)
		}
	}
}

func TestCompressIfBeneficialKeepsSmallerForm(t *testing.T) {
	raw := bytes.Repeat([]byte(`{"narration":"the tide comes in and the tide goes out"}`), 200)
	for _, codec := range []stagedoc.Codec{stagedoc.CodecZstd, stagedoc.CodecLZ4} {
		got, err := compressIfBeneficial(raw, codec, 0.8)
		if err != nil {
			t.Fatalf("%s: %v", codec, err)
		}
		if !got.compressed || got.codec != codec {
			t.Fatalf("%s: expected compressed output, got %+v", codec, got.codec)
		}
		if float64(len(got.data)) >= 0.8*float64(len(raw)) {
			t.Fatalf("%s: compressed size %d not below ratio of %d", codec, len(got.data), len(raw))
		}
		back, err := decompress(got.data, codec, len(raw))
		if err != nil {
			t.Fatalf("%s decompress: %v", codec, err)
		}
		if !bytes.Equal(back, raw) {
			t.Fatalf("%s: round trip mismatch", codec)
		}
	}
}

func TestCompressIfBeneficialFallsBackToRaw(t *testing.T) {
	random := make([]byte, 4096)
	if _, err := rand.Read(random); err != nil {
		t.Fatal(err)
	}
	compressible := bytes.Repeat([]byte("abcd"), 1024)

	tests := []struct {
		name  string
		raw   []byte
		codec stagedoc.Codec
		ratio float64
	}{
		{"incompressible zstd", random, stagedoc.CodecZstd, 0.8},
		{"incompressible lz4", random, stagedoc.CodecLZ4, 0.8},
		{"codec none", compressible, stagedoc.CodecNone, 0.8},
		{"ratio too strict", compressible, stagedoc.CodecZstd, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := compressIfBeneficial(tc.raw, tc.codec, tc.ratio)
			if err != nil {
				t.Fatal(err)
			}
			if got.compressed || got.codec != stagedoc.CodecNone {
				t.Fatalf("expected raw bytes, got codec %s", got.codec)
			}
			if !bytes.Equal(got.data, tc.raw) {
				t.Fatal("raw bytes altered")
			}
		})
	}
}

func TestDigestIsStable(t *testing.T) {
	a := digest([]byte(`{"topic":"reefs"}`))
	b := digest([]byte(`{"topic":"reefs"}`))
	c := digest([]byte(`{"topic":"tides"}`))
	if a != b {
		t.Fatal("digest not deterministic")
	}
	if a == c {
		t.Fatal("distinct inputs share a digest")
	}
	if len(a) != 64 {
		t.Fatalf("expected 32-byte hex digest, got %d chars", len(a))
	}
}
