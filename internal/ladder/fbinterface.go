package ladder

import (
	"fmt"
	"strings"
)

// FunctionBlockInfo is the interface of a user-defined function block POU.
type FunctionBlockInfo struct {
	Name    string   `json:"name"`
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
}

// ExtractFunctionBlocks lists every pou with pouType="functionBlock".
func ExtractFunctionBlocks(doc *Node) []FunctionBlockInfo {
	var infos []FunctionBlockInfo
	for _, pou := range doc.FindAll("pou") {
		if pouType, _ := pou.Attr("pouType"); pouType != "functionBlock" {
			continue
		}
		infos = append(infos, FunctionBlockInfo{
			Name:    pou.AttrOr("name", "unknown"),
			Inputs:  varNames(pou, "inputVars"),
			Outputs: varNames(pou, "outputVars"),
		})
	}
	return infos
}

func varNames(pou *Node, section string) []string {
	names := []string{}
	for _, list := range pou.FindAll(section) {
		for _, v := range list.ChildrenNamed("variable") {
			if name, _ := v.Attr("name"); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

// FunctionBlockHeader renders the comment header describing infos. No blocks,
// no header.
func FunctionBlockHeader(infos []FunctionBlockInfo) []string {
	if len(infos) == 0 {
		return nil
	}
	lines := []string{"// Function Block Definitions:"}
	for _, fb := range infos {
		lines = append(lines,
			fmt.Sprintf("// FB: %s", fb.Name),
			fmt.Sprintf("//   Inputs: %s", strings.Join(fb.Inputs, ", ")),
			fmt.Sprintf("//   Outputs: %s", strings.Join(fb.Outputs, ", ")),
		)
	}
	return append(lines, "//")
}
