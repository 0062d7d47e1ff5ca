package writer

import (
	"bytes"
	"testing"
)

func sampleWords() []string {
	return []string{
		"000000000" + "000000000000000000000000000",
		"000000001" + "100000000000000000000000000",
		"111111111" + "111111111111111111111111111",
	}
}

func TestWriteTextRoundTrips(t *testing.T) {
	words := sampleWords()

	var buf bytes.Buffer
	if err := WriteText(&buf, words); err != nil {
		t.Fatalf("WriteText: %v", err)
	}

	got, err := ReadText(&buf)
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}

	if len(got) != len(words) {
		t.Fatalf("got %d words, want %d", len(got), len(words))
	}
	for i := range words {
		if got[i] != words[i] {
			t.Errorf("word %d = %q, want %q", i, got[i], words[i])
		}
	}
}

func TestWriteTextRejectsWrongWidth(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, []string{"101"}); err == nil {
		t.Fatal("expected an error for a short word")
	}
}

func TestWriteBinaryPacksMSBFirst(t *testing.T) {
	// A single word of 36 ones packs to 4 full bytes of 0xFF and a final
	// byte with the top 4 bits set (36 = 4*8 + 4).
	word := ""
	for i := 0; i < 36; i++ {
		word += "1"
	}

	var buf bytes.Buffer
	if err := WriteBinary(&buf, []string{word}); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}

	want := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xF0}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got %x, want %x", buf.Bytes(), want)
	}
}

func TestWriteBinaryZeroWord(t *testing.T) {
	word := ""
	for i := 0; i < 36; i++ {
		word += "0"
	}

	var buf bytes.Buffer
	if err := WriteBinary(&buf, []string{word}); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}

	want := []byte{0x00, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got %x, want %x", buf.Bytes(), want)
	}
}

func TestReadTextRejectsNonBitCharacters(t *testing.T) {
	r := bytes.NewBufferString("000000000222222222222222222222222222\n")
	if _, err := ReadText(r); err == nil {
		t.Fatal("expected an error for a non-bit character")
	}
}
