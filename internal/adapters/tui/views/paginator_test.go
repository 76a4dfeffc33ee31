package views

import "testing"

func TestPaginator_CursorStaysOnPage(t *testing.T) {
	p := NewPaginator(3)
	p.SetTotal(7)

	for range 4 {
		p.CursorDown()
	}
	if p.Cursor() != 4 {
		t.Fatalf("cursor = %d, want 4", p.Cursor())
	}
	if start, end := p.VisibleRange(); start != 3 || end != 6 {
		t.Errorf("visible range = [%d,%d), want [3,6)", start, end)
	}
	if p.CurrentPage() != 2 || p.TotalPages() != 3 {
		t.Errorf("page %d/%d, want 2/3", p.CurrentPage(), p.TotalPages())
	}
	if p.CursorInPage() != 1 {
		t.Errorf("cursor in page = %d, want 1", p.CursorInPage())
	}
}

func TestPaginator_SetTotalClampsCursor(t *testing.T) {
	p := NewPaginator(5)
	p.SetTotal(10)
	p.SetCursor(9)

	p.SetTotal(4)
	if p.Cursor() != 3 {
		t.Errorf("cursor = %d, want 3", p.Cursor())
	}
	if start, _ := p.VisibleRange(); start != 0 {
		t.Errorf("page offset = %d, want 0", start)
	}
}

func TestPaginator_SetPageSize(t *testing.T) {
	p := NewPaginator(10)
	p.SetTotal(30)
	p.SetCursor(25)

	p.SetPageSize(4)
	start, end := p.VisibleRange()
	if p.Cursor() < start || p.Cursor() >= end {
		t.Errorf("cursor %d outside [%d,%d)", p.Cursor(), start, end)
	}

	p.SetPageSize(0)
	if _, end2 := p.VisibleRange(); end2-start != 4 {
		t.Error("non-positive page size should be ignored")
	}
}

func TestPaginator_Pages(t *testing.T) {
	p := NewPaginator(2)
	p.SetTotal(5)

	if !p.NextPage() || p.Cursor() != 2 {
		t.Fatalf("next page cursor = %d, want 2", p.Cursor())
	}
	p.NextPage()
	if p.NextPage() {
		t.Error("expected no page after the last one")
	}
	if !p.PrevPage() || p.Cursor() != 2 {
		t.Errorf("prev page cursor = %d, want 2", p.Cursor())
	}
}
