package diagram

import (
	"encoding/xml"
	"fmt"

	"github.com/mautops/docflow-gin/internal/statemachine"
)

const (
	nsBPMN   = "http://www.omg.org/spec/BPMN/20100524/MODEL"
	nsBPMNDI = "http://www.omg.org/spec/BPMN/20100524/DI"
	nsDC     = "http://www.omg.org/spec/DD/20100524/DC"
	nsDI     = "http://www.omg.org/spec/DD/20100524/DI"
	nsXSI    = "http://www.w3.org/2001/XMLSchema-instance"
)

type bpmnDefinitions struct {
	XMLName         xml.Name    `xml:"bpmn:definitions"`
	XmlnsBPMN       string      `xml:"xmlns:bpmn,attr"`
	XmlnsBPMNDI     string      `xml:"xmlns:bpmndi,attr"`
	XmlnsDC         string      `xml:"xmlns:dc,attr"`
	XmlnsDI         string      `xml:"xmlns:di,attr"`
	XmlnsXSI        string      `xml:"xmlns:xsi,attr"`
	ID              string      `xml:"id,attr"`
	TargetNamespace string      `xml:"targetNamespace,attr"`
	Process         bpmnProcess `xml:"bpmn:process"`
	Diagram         bpmnDiagram `xml:"bpmndi:BPMNDiagram"`
}

type bpmnProcess struct {
	ID           string             `xml:"id,attr"`
	Name         string             `xml:"name,attr,omitempty"`
	IsExecutable bool               `xml:"isExecutable,attr"`
	StartEvents  []bpmnFlowNode     `xml:"bpmn:startEvent"`
	Tasks        []bpmnFlowNode     `xml:"bpmn:task"`
	UserTasks    []bpmnFlowNode     `xml:"bpmn:userTask"`
	Gateways     []bpmnGateway      `xml:"bpmn:exclusiveGateway"`
	EndEvents    []bpmnFlowNode     `xml:"bpmn:endEvent"`
	Flows        []bpmnSequenceFlow `xml:"bpmn:sequenceFlow"`
}

type bpmnFlowNode struct {
	ID       string   `xml:"id,attr"`
	Name     string   `xml:"name,attr,omitempty"`
	Incoming []string `xml:"bpmn:incoming"`
	Outgoing []string `xml:"bpmn:outgoing"`
}

type bpmnGateway struct {
	ID       string   `xml:"id,attr"`
	Name     string   `xml:"name,attr,omitempty"`
	Default  string   `xml:"default,attr,omitempty"`
	Incoming []string `xml:"bpmn:incoming"`
	Outgoing []string `xml:"bpmn:outgoing"`
}

type bpmnSequenceFlow struct {
	ID        string         `xml:"id,attr"`
	Name      string         `xml:"name,attr,omitempty"`
	SourceRef string         `xml:"sourceRef,attr"`
	TargetRef string         `xml:"targetRef,attr"`
	Condition *bpmnCondition `xml:"bpmn:conditionExpression,omitempty"`
}

type bpmnCondition struct {
	Type string `xml:"xsi:type,attr"`
	Body string `xml:",chardata"`
}

type bpmnDiagram struct {
	ID    string    `xml:"id,attr"`
	Plane bpmnPlane `xml:"bpmndi:BPMNPlane"`
}

type bpmnPlane struct {
	ID          string      `xml:"id,attr"`
	BPMNElement string      `xml:"bpmnElement,attr"`
	Shapes      []bpmnShape `xml:"bpmndi:BPMNShape"`
	Edges       []bpmnEdge  `xml:"bpmndi:BPMNEdge"`
}

type bpmnShape struct {
	ID              string     `xml:"id,attr"`
	BPMNElement     string     `xml:"bpmnElement,attr"`
	IsMarkerVisible bool       `xml:"isMarkerVisible,attr,omitempty"`
	Bounds          bpmnBounds `xml:"dc:Bounds"`
}

type bpmnBounds struct {
	X      int `xml:"x,attr"`
	Y      int `xml:"y,attr"`
	Width  int `xml:"width,attr"`
	Height int `xml:"height,attr"`
}

type bpmnEdge struct {
	ID          string         `xml:"id,attr"`
	BPMNElement string         `xml:"bpmnElement,attr"`
	Waypoints   []bpmnWaypoint `xml:"di:waypoint"`
}

type bpmnWaypoint struct {
	X int `xml:"x,attr"`
	Y int `xml:"y,attr"`
}

// EncodeBPMN 将流程图编码为带布局信息的 BPMN 2.0 XML
func EncodeBPMN(g *Graph, processID, processName string) ([]byte, error) {
	if g == nil || len(g.Nodes) == 0 {
		return nil, ErrNoTasksToRender
	}

	incoming := make(map[string][]string)
	outgoing := make(map[string][]string)
	for _, e := range g.Edges {
		outgoing[e.Source] = append(outgoing[e.Source], e.ID)
		incoming[e.Target] = append(incoming[e.Target], e.ID)
	}

	pid := "Process_" + processID
	defs := bpmnDefinitions{
		XmlnsBPMN:       nsBPMN,
		XmlnsBPMNDI:     nsBPMNDI,
		XmlnsDC:         nsDC,
		XmlnsDI:         nsDI,
		XmlnsXSI:        nsXSI,
		ID:              "Definitions_" + processID,
		TargetNamespace: "http://bpmn.io/schema/bpmn",
		Process: bpmnProcess{
			ID:   pid,
			Name: processName,
		},
		Diagram: bpmnDiagram{
			ID: "BPMNDiagram_" + processID,
			Plane: bpmnPlane{
				ID:          "BPMNPlane_" + processID,
				BPMNElement: pid,
			},
		},
	}

	for _, n := range g.Nodes {
		fn := bpmnFlowNode{ID: n.ID, Name: n.Name, Incoming: incoming[n.ID], Outgoing: outgoing[n.ID]}
		switch n.Kind {
		case NodeStart:
			defs.Process.StartEvents = append(defs.Process.StartEvents, fn)
		case NodeEnd:
			defs.Process.EndEvents = append(defs.Process.EndEvents, fn)
		case NodeGateway:
			gw := bpmnGateway{ID: n.ID, Name: n.Name, Incoming: incoming[n.ID], Outgoing: outgoing[n.ID]}
			for _, e := range g.Outgoing(n.ID) {
				if e.Default {
					gw.Default = e.ID
				}
			}
			defs.Process.Gateways = append(defs.Process.Gateways, gw)
		case NodeTask:
			if n.TaskType == statemachine.TaskTypeValidation {
				defs.Process.UserTasks = append(defs.Process.UserTasks, fn)
			} else {
				defs.Process.Tasks = append(defs.Process.Tasks, fn)
			}
		default:
			return nil, fmt.Errorf("unknown node kind %q", n.Kind)
		}

		defs.Diagram.Plane.Shapes = append(defs.Diagram.Plane.Shapes, bpmnShape{
			ID:              n.ID + "_di",
			BPMNElement:     n.ID,
			IsMarkerVisible: n.Kind == NodeGateway,
			Bounds: bpmnBounds{
				X:      n.Bounds.X,
				Y:      n.Bounds.Y,
				Width:  n.Bounds.Width,
				Height: n.Bounds.Height,
			},
		})
	}

	for _, e := range g.Edges {
		flow := bpmnSequenceFlow{
			ID:        e.ID,
			Name:      e.Condition,
			SourceRef: e.Source,
			TargetRef: e.Target,
		}
		// 默认流不能带条件表达式
		if e.Condition != "" && !e.Default {
			flow.Condition = &bpmnCondition{
				Type: "bpmn:tFormalExpression",
				Body: fmt.Sprintf("${decision == '%s'}", e.Condition),
			}
		}
		defs.Process.Flows = append(defs.Process.Flows, flow)

		src, _ := g.Node(e.Source)
		dst, _ := g.Node(e.Target)
		waypoints := route(src.Bounds, dst.Bounds)
		if e.Condition == ConditionRejected {
			waypoints = routeAbove(src.Bounds, dst.Bounds)
		}
		defs.Diagram.Plane.Edges = append(defs.Diagram.Plane.Edges, bpmnEdge{
			ID:          e.ID + "_di",
			BPMNElement: e.ID,
			Waypoints:   waypoints,
		})
	}

	body, err := xml.MarshalIndent(defs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode bpmn: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// route 计算连线折点: 同一行直连, 不同行先水平后垂直
func route(src, dst Bounds) []bpmnWaypoint {
	startX := src.X + src.Width
	startY := src.CenterY()
	endY := dst.CenterY()

	if startY == endY && dst.X >= startX {
		return []bpmnWaypoint{{X: startX, Y: startY}, {X: dst.X, Y: endY}}
	}

	// 回流或跨行
	if dst.X < startX {
		fromX := src.X + src.Width/2
		toX := dst.X + dst.Width/2
		if startY > endY {
			// 从下方回到主链
			return []bpmnWaypoint{
				{X: src.X, Y: startY},
				{X: toX, Y: startY},
				{X: toX, Y: dst.Y + dst.Height},
			}
		}
		if fromX == toX {
			return []bpmnWaypoint{{X: fromX, Y: src.Y + src.Height}, {X: toX, Y: dst.Y}}
		}
		return []bpmnWaypoint{
			{X: fromX, Y: src.Y + src.Height},
			{X: fromX, Y: dst.Y},
			{X: toX, Y: dst.Y},
		}
	}

	midX := startX + (dst.X-startX)/2
	return []bpmnWaypoint{
		{X: startX, Y: startY},
		{X: midX, Y: startY},
		{X: midX, Y: endY},
		{X: dst.X, Y: endY},
	}
}

// routeAbove 驳回分支从主链上方绕行到目标
func routeAbove(src, dst Bounds) []bpmnWaypoint {
	top := baselineY - horizontalGap
	fromX := src.X + src.Width/2
	toX := dst.X + dst.Width/2
	return []bpmnWaypoint{
		{X: fromX, Y: src.Y},
		{X: fromX, Y: top},
		{X: toX, Y: top},
		{X: toX, Y: dst.Y},
	}
}
