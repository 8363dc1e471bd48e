package local_test

import (
	"testing"

	"github.com/iamvkosarev/easymatter-bot/pkg/local"
	"github.com/stretchr/testify/assert"
)

func TestTextSet(t *testing.T) {
	set := local.NewSet("Started %s", local.NewTrans(local.Rus, "Начато: %s"))

	assert.Equal(t, "Started %s", set.Text(local.Eng))
	assert.Equal(t, "Начато: %s", set.Text(local.Rus))
	assert.Equal(t, "Started solar", set.Format(local.Eng, "solar"))
	assert.Equal(t, "Начато: solar", set.Format(local.Rus, "solar"))
	assert.Equal(t, "Started x", set.DefaultFormat("x"))
}

func TestParseLanguage(t *testing.T) {
	assert.Equal(t, local.Rus, local.ParseLanguage("ru"))
	assert.Equal(t, local.Rus, local.ParseLanguage("RU-ru"))
	assert.Equal(t, local.Eng, local.ParseLanguage("de"))
	assert.Equal(t, local.Eng, local.ParseLanguage(""))
}
