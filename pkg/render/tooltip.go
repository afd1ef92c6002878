package render

import (
	"bytes"
	"fmt"
)

const baseCSS = `
    path, circle { stroke: #fff; stroke-width: 0.5; }
    text.label { font: 10px sans-serif; text-anchor: middle; pointer-events: none; }
    .legend text { font: 11px sans-serif; }`

const tooltipCSS = `
    .valued { transition: opacity 0.15s ease; cursor: pointer; }
    .tooltip { pointer-events: none; transition: opacity 0.15s ease; }
    .tooltip[visibility="hidden"] { opacity: 0; }
    .tooltip[visibility="visible"] { opacity: 1; }`

const tooltipJS = `
    const svg = document.querySelector('svg');
    const vb = svg.viewBox.baseVal;
    const tip = document.querySelector('.tooltip');
    const tipText = tip.querySelector('text');
    const tipBox = tip.querySelector('rect');
    document.querySelectorAll('.valued').forEach(el => {
      el.addEventListener('mouseenter', evt => {
        el.parentNode.appendChild(el);
        el.setAttribute('opacity', '0.7');
        tipText.textContent = el.dataset.tip || '';
        const textBox = tipText.getBBox();
        tipBox.setAttribute('width', (textBox.width + 12).toFixed(1));
        tipBox.setAttribute('height', (textBox.height + 8).toFixed(1));
        const pt = svg.createSVGPoint();
        pt.x = evt.clientX; pt.y = evt.clientY;
        const loc = pt.matrixTransform(svg.getScreenCTM().inverse());
        let x = loc.x + 12, y = loc.y - 12;
        x = Math.max(vb.x, Math.min(x, vb.x + vb.width - textBox.width - 12));
        y = Math.max(vb.y + 10, y);
        tip.setAttribute('transform', 'translate(' + x.toFixed(1) + ',' + y.toFixed(1) + ')');
        tip.setAttribute('visibility', 'visible');
      });
      el.addEventListener('mouseleave', () => {
        el.setAttribute('opacity', '1');
        tip.setAttribute('visibility', 'hidden');
      });
    });`

// renderTooltipAssets emits the floating tooltip group and the hover script
// that raises the hovered primitive to the top of its siblings, fades it,
// and positions the tooltip from the primitive's pre-substituted text.
func renderTooltipAssets(buf *bytes.Buffer) {
	buf.WriteString("  <g class=\"tooltip\" visibility=\"hidden\">\n")
	buf.WriteString("    <rect rx=\"3\" fill=\"#333\" opacity=\"0.9\"/>\n")
	buf.WriteString("    <text x=\"6\" y=\"14\" fill=\"#fff\" font-size=\"11\" font-family=\"sans-serif\"></text>\n")
	buf.WriteString("  </g>\n")
	fmt.Fprintf(buf, "  <style>%s\n  </style>\n", tooltipCSS)
	fmt.Fprintf(buf, "  <script type=\"text/javascript\"><![CDATA[%s\n  ]]></script>\n", tooltipJS)
}

func renderBaseStyle(buf *bytes.Buffer) {
	fmt.Fprintf(buf, "  <style>%s\n  </style>\n", baseCSS)
}
