package main

import (
	"github.com/Zen8/java-language-server/cmd/jdap/cmds"
	"github.com/Zen8/java-language-server/pkg/jvm"
	"github.com/Zen8/java-language-server/pkg/jvm/jdwp"
)

func main() {
	jvm.RegisterConnector(jdwp.NewAttachingConnector())
	cmds.New().Execute()
}
