package env

import (
	"reflect"
	"testing"
	"time"
)

func TestGetters(t *testing.T) {
	t.Setenv("CANTEEN_TEST_INT", "12")
	t.Setenv("CANTEEN_TEST_BAD_INT", "twelve")
	t.Setenv("CANTEEN_TEST_BOOL", "true")
	t.Setenv("CANTEEN_TEST_DURATION", "3s")

	if got := GetInt("CANTEEN_TEST_INT", 1); got != 12 {
		t.Errorf("GetInt = %d, want 12", got)
	}
	if got := GetInt("CANTEEN_TEST_BAD_INT", 1); got != 1 {
		t.Errorf("GetInt with bad value = %d, want default 1", got)
	}
	if !GetBool("CANTEEN_TEST_BOOL", false) {
		t.Error("GetBool = false, want true")
	}
	if got := GetDuration("CANTEEN_TEST_DURATION", time.Second); got != 3*time.Second {
		t.Errorf("GetDuration = %v, want 3s", got)
	}
	if got := GetEnv("CANTEEN_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("GetEnv = %q, want fallback", got)
	}
}

func TestGetList(t *testing.T) {
	t.Setenv("CANTEEN_TEST_LIST", " kafka-1:9092, ,kafka-2:9092 ")

	got := GetList("CANTEEN_TEST_LIST", nil)
	want := []string{"kafka-1:9092", "kafka-2:9092"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GetList = %v, want %v", got, want)
	}
	if got := GetList("CANTEEN_TEST_LIST_MISSING", []string{"x"}); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("GetList default = %v", got)
	}
}
