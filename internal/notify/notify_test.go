package notify

import (
	"context"
	"strings"
	"testing"
)

func TestData(t *testing.T) {
	cases := []struct{ got, want string }{
		{Data(ActJoin, uint(42)), "join_room:42"},
		{Data(ActList, "open", 2), "req_list:open:2"},
		{Data(ActReview, uint(7), 5), "review:7:5"},
		{Data(ActAccept), "req_accept"},
		{Data(ActConfirmDone, uint(1)), "confirm_done:1"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("Data = %q, want %q", tc.got, tc.want)
		}
	}
}

func TestTexts_Locales(t *testing.T) {
	en := NewTexts("en")
	if got := en.T(MsgPayWindowExpired, 43); !strings.Contains(got, "#43") || !strings.Contains(got, "expired") {
		t.Fatalf("en text = %q", got)
	}
	ru := NewTexts("ru")
	if got := ru.T(MsgPayWindowExpired, 43); !strings.Contains(got, "#43") || !strings.Contains(got, "истекло") {
		t.Fatalf("ru text = %q", got)
	}
	if got := ru.T(BtnPaid); got != "✅ Оплатил" {
		t.Fatalf("ru button = %q", got)
	}
	if got := NewTexts("zz-bogus").T(MsgBothInChat); got != MsgBothInChat {
		t.Fatalf("fallback text = %q", got)
	}
}

func TestTexts_EveryKeyTranslated(t *testing.T) {
	ru := NewTexts("ru")
	en := NewTexts("en")
	for key := range russian {
		if ru.T(key) == en.T(key) && key != BtnPrev && key != BtnNext {
			t.Fatalf("key %q has no russian translation", key)
		}
	}
}

func TestNop(t *testing.T) {
	var n Notifier = Nop{}
	if id, err := n.Send(context.Background(), 1, "x", Row(Button{Text: "a", Data: "b"})); id != 0 || err != nil {
		t.Fatalf("Nop.Send = %d, %v", id, err)
	}
	if n.Copy(context.Background(), 1, 2, 3) != nil || n.Delete(context.Background(), 1, 2) != nil {
		t.Fatalf("Nop must never fail")
	}
}
